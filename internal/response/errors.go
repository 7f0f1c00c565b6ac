package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidExamType ErrCode = "INVALID_EXAM_TYPE"

	// ─── Session ───────────────────────────────────────────────────────
	ErrPartOutOfRange     ErrCode = "PART_OUT_OF_RANGE"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrInvalidAudioStatus ErrCode = "INVALID_AUDIO_STATUS"
	ErrMissingAnswer      ErrCode = "MISSING_ANSWER"
	ErrUnknownAction      ErrCode = "UNKNOWN_ACTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidExamType:
		return "Exam type must be listening or reading."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrPartOutOfRange:
		return "Part index is out of range."
	case ErrSessionNotActive:
		return "The exam is not in progress."
	case ErrInvalidAudioStatus:
		return "Audio status must be loading, ready or error."
	case ErrMissingAnswer:
		return "An answer value is required."
	case ErrUnknownAction:
		return "Unknown action."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUnavailable:
		return "A backing service is unavailable."
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
