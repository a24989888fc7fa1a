package binance

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies an exchange error into the handling policy it
// falls under. Collectors branch on the category, never on raw codes.
type ErrorCategory string

const (
	ErrAPIKeyInvalid       ErrorCategory = "API_KEY_INVALID"
	ErrRateLimit           ErrorCategory = "RATE_LIMIT"
	ErrParameter           ErrorCategory = "PARAMETER_ERROR"
	ErrInvalidSymbol       ErrorCategory = "INVALID_SYMBOL"
	ErrInsufficientBalance ErrorCategory = "INSUFFICIENT_BALANCE"
	ErrNetwork             ErrorCategory = "NETWORK_ERROR"
	ErrUnknown             ErrorCategory = "UNKNOWN"
)

// APIError is a typed exchange error carrying the category and the original
// error envelope so skipped work can be replayed by hand later.
type APIError struct {
	Category   ErrorCategory
	Code       int
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: %s (code=%d, http=%d): %s", e.Category, e.Code, e.HTTPStatus, e.Message)
}

// Retryable reports whether the request may be reissued after a backoff.
func (e *APIError) Retryable() bool {
	return e.Category == ErrRateLimit || e.Category == ErrNetwork
}

// codeCategories maps Binance error codes to categories. The codes are
// load-bearing: -2014/-2015 are malformed or revoked keys, -1022 a bad
// signature, -1003 too much request weight, -1121 an unknown symbol.
var codeCategories = map[int]ErrorCategory{
	-2014: ErrAPIKeyInvalid,
	-2015: ErrAPIKeyInvalid,
	-1022: ErrAPIKeyInvalid,
	-1002: ErrAPIKeyInvalid,
	-1003: ErrRateLimit,
	-1121: ErrInvalidSymbol,
	-2010: ErrInsufficientBalance,
	-1100: ErrParameter,
	-1101: ErrParameter,
	-1102: ErrParameter,
	-1103: ErrParameter,
	-1104: ErrParameter,
	-1105: ErrParameter,
	-1106: ErrParameter,
	-1130: ErrParameter,
}

var networkHints = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"eof",
	"no such host",
	"broken pipe",
}

// classify turns an exchange error envelope into an APIError. HTTP 429 and
// 418 (IP ban) are rate-limit responses regardless of body code.
func classify(httpStatus, code int, message string) *APIError {
	category, ok := codeCategories[code]
	if !ok {
		category = ErrUnknown
	}
	if httpStatus == 429 || httpStatus == 418 {
		category = ErrRateLimit
	}
	if category == ErrUnknown && looksLikeNetworkError(message) {
		category = ErrNetwork
	}
	return &APIError{
		Category:   category,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// networkError wraps a transport-level failure (no HTTP response at all).
func networkError(err error) *APIError {
	return &APIError{Category: ErrNetwork, Message: err.Error()}
}

func looksLikeNetworkError(message string) bool {
	lower := strings.ToLower(message)
	for _, hint := range networkHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
