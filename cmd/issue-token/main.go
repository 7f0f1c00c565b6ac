package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/exam-practice/internal/config"
	"github.com/stemsi/exam-practice/internal/service"
	"golang.org/x/term"
)

// issue-token signs a bearer token for local testing against the gateway.
// In production tokens come from the content backend, which shares JWT_SECRET.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	userID := flag.String("user", "", "user ID to put in the user_id claim")
	ttl := flag.Duration("ttl", cfg.JWTExpiry, "token lifetime")
	flag.Parse()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	if *userID == "" {
		fmt.Fprint(os.Stderr, "Enter User ID: ")
		line, _ := reader.ReadString('\n')
		*userID = strings.TrimSpace(line)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Error: User ID is required")
		os.Exit(1)
	}

	// Without JWT_SECRET in the environment, ask for it instead of signing
	// with the development default.
	secret := cfg.JWTSecret
	if os.Getenv("JWT_SECRET") == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Enter JWT secret (empty for dev default): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		if s := strings.TrimSpace(string(raw)); s != "" {
			secret = s
		}
	}

	if *ttl <= 0 {
		*ttl = 24 * time.Hour
	}

	token, err := service.NewAuthService(secret).IssueToken(*userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s, valid for %s:\n", *userID, *ttl)
	fmt.Println(token)
}
