// Package boundary provides the error boundary: a call wrapper that
// guarantees the caller never observes a panic or raw error from a fallible
// dependency, only a structured fallback value.
package boundary

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hearthware/concierge/pkg/models"
)

// Boundary contains crashes from wrapped calls and converts them into
// fallback values built from structured error info.
type Boundary struct {
	log zerolog.Logger
}

// New creates a boundary that logs contained faults through log.
func New(log zerolog.Logger) *Boundary {
	return &Boundary{log: log}
}

// SafeCall runs fn. If fn returns an error or panics, the fault is logged
// and fallback is invoked with the structured error info; its value is
// returned instead. SafeCall itself never panics and never returns an error.
func SafeCall[T any](b *Boundary, fn func() (T, error), fallback func(models.ErrorInfo) T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			info := models.ErrorInfo{
				Code:        "PANIC",
				Message:     fmt.Sprintf("%v", r),
				Recoverable: true,
			}
			b.log.Error().Str("code", info.Code).Str("detail", info.Message).Msg("crash contained")
			out = fallback(info)
		}
	}()

	v, err := fn()
	if err != nil {
		info := models.ErrorInfo{
			Code:        errorCode(err),
			Message:     err.Error(),
			Recoverable: true,
		}
		b.log.Error().Str("code", info.Code).Err(err).Msg("crash contained")
		return fallback(info)
	}
	return v
}

// errorCode derives a stable code from an error. Coded errors keep their
// code; everything else is reported as a generic internal error.
func errorCode(err error) string {
	type coded interface{ Code() string }
	if c, ok := err.(coded); ok {
		return c.Code()
	}
	return "INTERNAL_ERROR"
}
