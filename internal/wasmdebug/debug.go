// Package wasmdebug builds human-readable wasm stack traces for panics
// recovered at the Call boundary.
package wasmdebug

import (
	"fmt"
	"strings"

	"github.com/corewasm/corewasm/api"
)

// FuncName stitches a module and function name into a single dot-delimited
// identifier for diagnostics, falling back to a positional name ($idx) when
// the function itself is unnamed.
func FuncName(moduleName, funcName string, funcIdx uint32) string {
	if funcName == "" {
		funcName = fmt.Sprintf("$%d", funcIdx)
	}
	return moduleName + "." + funcName
}

func signature(name string, paramTypes, resultTypes []api.ValueType) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, t := range paramTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(api.ValueTypeName(t))
	}
	sb.WriteByte(')')
	switch len(resultTypes) {
	case 0:
	case 1:
		sb.WriteByte(' ')
		sb.WriteString(api.ValueTypeName(resultTypes[0]))
	default:
		sb.WriteString(" (")
		for i, t := range resultTypes {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(api.ValueTypeName(t))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// ErrorBuilder accumulates wasm call frames, innermost first, as the call
// stack unwinds during panic recovery, then renders them alongside the
// recovered value into a single error with an unwrappable cause.
type ErrorBuilder interface {
	// AddFrame records one call frame. Call repeatedly from innermost to
	// outermost as the defer/recover unwinds ce.frames.
	AddFrame(name string, paramTypes, resultTypes []api.ValueType)

	// FromRecovered turns the value caught by recover() into an error that
	// Unwraps to the recovered value itself when it is an error (a
	// runtime.Error included), or to a new error formatted from it otherwise,
	// and whose message includes the accumulated stack trace.
	FromRecovered(recovered interface{}) error
}

type errorBuilder struct {
	frames []string
}

// NewErrorBuilder constructs an empty ErrorBuilder.
func NewErrorBuilder() ErrorBuilder {
	return &errorBuilder{}
}

func (b *errorBuilder) AddFrame(name string, paramTypes, resultTypes []api.ValueType) {
	b.frames = append(b.frames, signature(name, paramTypes, resultTypes))
}

func (b *errorBuilder) FromRecovered(recovered interface{}) error {
	var cause error
	switch v := recovered.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("%v", v)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (recovered by corewasm)", cause.Error())
	if len(b.frames) > 0 {
		sb.WriteString("\nwasm stack trace:")
		for _, f := range b.frames {
			sb.WriteString("\n\t")
			sb.WriteString(f)
		}
	}
	return &traceError{cause: cause, msg: sb.String()}
}

type traceError struct {
	cause error
	msg   string
}

func (e *traceError) Error() string { return e.msg }
func (e *traceError) Unwrap() error { return e.cause }
