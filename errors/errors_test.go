package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDecode,
				Kind:   KindOutOfBounds,
				Path:   []string{"interpreter_interpret_str_web", "result"},
				Detail: "word 3 past end",
			},
			contains: []string{"[decode]", "out_of_bounds", "interpreter_interpret_str_web.result", "word 3 past end"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseHandle,
				Kind:  KindInvalidHandle,
			},
			contains: []string{"[handle]", "invalid_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindAllocation,
				Detail: "guest malloc failed",
				Cause:  errors.New("memory limit reached"),
			},
			contains: []string{"[encode]", "allocation", "guest malloc failed", "caused by", "memory limit reached"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseLoad, KindInvalidData, cause, "read module")

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{Phase: PhaseEncode, Kind: KindInvalidUTF8, Path: []string{"source"}}

	if !errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindInvalidUTF8}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidUTF8}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindOverflow}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCall, KindTrap).
		Path("run_program").
		Value(uint32(7)).
		Cause(cause).
		Detail("frame at %d", 65520).
		Build()

	if err.Phase != PhaseCall || err.Kind != KindTrap {
		t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
	}
	if len(err.Path) != 1 || err.Path[0] != "run_program" {
		t.Errorf("Path = %v, want [run_program]", err.Path)
	}
	if err.Value != uint32(7) {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "frame at 65520" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseDecode, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 || !strings.Contains(err.Detail, "fffe") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseEncode, 1024, 1, nil)
		if err.Kind != KindAllocation || !strings.Contains(err.Detail, "1024") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, 65534, 4, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "[65534, 65538)") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("InvalidHandle", func(t *testing.T) {
		err := InvalidHandle(140, "slot is vacant")
		if err.Phase != PhaseHandle || err.Value != uint32(140) {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		err := Trap("run_program", errors.New("unreachable"))
		if err.Kind != KindTrap || err.Path[0] != "run_program" {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("NotInitialized", func(t *testing.T) {
		err := NotInitialized(PhaseRuntime, "bridge")
		if !errors.Is(err, &Error{Phase: PhaseRuntime, Kind: KindNotInitialized}) {
			t.Errorf("got %v", err)
		}
	})
}

func TestGuestError(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "Unexpected token '$'.", "Unexpected token '$'."},
		{"error", errors.New("Division by zero."), "Division by zero."},
		{"number", 3.5, "3.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &GuestError{Value: tt.value}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}

	var ge *GuestError
	wrapped := Trap("run", &GuestError{Value: "boom"})
	if !errors.As(wrapped, &ge) || ge.Error() != "boom" {
		t.Error("errors.As should unwrap GuestError from a trap")
	}
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := &MissingImportsError{Imports: []MissingImport{
			{Namespace: "wbg", Function: "__wbindgen_string_new", Signature: "(i32) -> i32, host provides (i32, i32) -> i32"},
		}}
		msg := err.Error()
		for _, s := range []string{"missing 1", "wbg:", "__wbindgen_string_new", "host provides (i32, i32) -> i32"} {
			if !strings.Contains(msg, s) {
				t.Errorf("message %q does not contain %q", msg, s)
			}
		}
	})

	t.Run("grouped by namespace", func(t *testing.T) {
		err := &MissingImportsError{Imports: []MissingImport{
			{Namespace: "wbg", Function: "__wbg_random_1f3c", Signature: "() -> f64"},
			{Namespace: "env", Function: "abort"},
			{Namespace: "wbg", Function: "__wbindgen_debug_string"},
		}}
		msg := err.Error()
		for _, s := range []string{"missing 3", "wbg:", "env:", "__wbg_random_1f3c () -> f64"} {
			if !strings.Contains(msg, s) {
				t.Errorf("message %q does not contain %q", msg, s)
			}
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := &MissingImportsError{}
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("got %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := &MissingImportsError{Imports: []MissingImport{{Namespace: "ns", Function: "fn"}}}
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should match MissingImportsError")
		}
	})
}
