package figcn

import (
	"github.com/pkg/errors"
)

// Errors produced while loading rules. None of them escape Load: each one
// either drops a single entry or makes the store fall back to the built-in
// rules. They are exposed so that callers can classify LastError and the
// rejections reported by VetEntries.
var (
	ErrConfigUnavailable = errors.New("rule source unavailable")
	ErrConfigParse       = errors.New("rule source could not be parsed")
	ErrRuleValidation    = errors.New("invalid rule")
	ErrEmptyRuleSet      = errors.New("rule source contains no valid rules")
)

// fallbackReason maps a load error to the label used in metrics and logs.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrConfigUnavailable):
		return "unavailable"
	case errors.Is(err, ErrConfigParse):
		return "parse"
	case errors.Is(err, ErrEmptyRuleSet):
		return "empty"
	default:
		return "unknown"
	}
}
