package errors

import (
	"fmt"
	"strings"
)

// GuestError carries an error value produced by the guest program.
// Its message is the guest's message, unchanged.
type GuestError struct {
	Value any
}

func (e *GuestError) Error() string {
	switch v := e.Value.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Unwrap exposes a host error that was stored by the guest
func (e *GuestError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is reports whether target matches this error type
func (e *GuestError) Is(target error) bool {
	_, ok := target.(*GuestError)
	return ok
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "wbg"
	Function  string // e.g., "__wbindgen_string_new"
	Signature string
}

// MissingImportsError is returned when the guest imports functions the host does not provide
type MissingImportsError struct {
	Imports []MissingImport
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[linking] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):\n", len(e.Imports))

	byNS := make(map[string][]MissingImport)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, imp := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(imp.Function)
			if imp.Signature != "" {
				b.WriteByte(' ')
				b.WriteString(imp.Signature)
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
