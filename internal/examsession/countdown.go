package examsession

import (
	"sync"
	"time"
)

// Countdown drives the one-second exam timer. At most one ticker goroutine
// runs per Countdown; onTimeUp fires at most once over its lifetime.
type Countdown struct {
	interval time.Duration
	onTick   func() int // dispatches a tick and returns the remaining seconds
	onTimeUp func()

	mu      sync.Mutex
	stop    chan struct{}
	running bool
	fired   bool
}

// NewCountdown creates a stopped countdown. interval is one second in
// production; tests shorten it.
func NewCountdown(interval time.Duration, onTick func() int, onTimeUp func()) *Countdown {
	return &Countdown{
		interval: interval,
		onTick:   onTick,
		onTimeUp: onTimeUp,
	}
}

// Start begins ticking from remaining seconds. It is a no-op while already
// running or after time-up has fired. A non-positive remaining fires
// time-up immediately without ticking.
func (c *Countdown) Start(remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.fired {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	go c.run(c.stop, remaining)
}

// Stop halts the ticker. It does not wait for the goroutine to exit, so it
// is safe to call from within onTick or onTimeUp. Calling it twice is fine.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	close(c.stop)
	c.running = false
}

// Running reports whether a ticker goroutine is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(stop <-chan struct{}, remaining int) {
	if remaining <= 0 {
		c.timeUp(stop)
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.onTick() <= 0 {
				c.timeUp(stop)
				return
			}
		}
	}
}

func (c *Countdown) timeUp(stop <-chan struct{}) {
	c.mu.Lock()
	select {
	case <-stop:
		c.mu.Unlock()
		return
	default:
	}
	if c.fired {
		c.mu.Unlock()
		return
	}
	c.fired = true
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	c.onTimeUp()
}
