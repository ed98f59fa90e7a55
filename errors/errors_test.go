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
				Phase:  PhaseEncode,
				Kind:   KindNilPointer,
				Op:     "do-thing",
				Path:   []string{"shared-thing", "y"},
				GoType: "*bridge.ThingR",
				Detail: "nil pointer",
			},
			contains: []string{"[encode]", "nil_pointer", "in do-thing", "shared-thing.y", "*bridge.ThingR", "- nil pointer"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseGuest,
				Kind:   KindTrap,
				Detail: "unreachable",
				Cause:  errors.New("wasm error: unreachable"),
			},
			contains: []string{"[guest]", "trap", ": unreachable", "caused by", "wasm error"},
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
	err := Trap("make-demo", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindMoved,
		Op:    "get-name",
	}

	if !err.Is(&Error{Phase: PhaseEncode, Kind: KindMoved}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindMoved}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	var target *Error
	if !errors.As(error(err), &target) || target.Op != "get-name" {
		t.Error("errors.As should extract *Error")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseHost, KindNotFound).
		Op("print-r").
		Path("thing-r").
		GoType("*bridge.ThingR").
		Value(7).
		Cause(cause).
		Detail("handle %d not in table", 7).
		Build()

	if err.Phase != PhaseHost {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseHost)
	}
	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if err.Op != "print-r" {
		t.Errorf("Op = %q, want print-r", err.Op)
	}
	if len(err.Path) != 1 || err.Path[0] != "thing-r" {
		t.Errorf("Path = %v, want [thing-r]", err.Path)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "handle 7 not in table" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput("make-demo", "label is %d bytes", 10)
		if err.Kind != KindInvalidInput || err.Op != "make-demo" {
			t.Errorf("got %v", err)
		}
		if err.Detail != "label is 10 bytes" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseDecode, []string{"name"}, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %q, should contain hex preview", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(1024, 8, nil)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, []string{"name"}, 70000, 4)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(70000) {
			t.Errorf("Value = %v, want 70000", err.Value)
		}
	})

	t.Run("NilPointer", func(t *testing.T) {
		err := NilPointer("get-name", nil, "*bridge.Demo")
		if err.Kind != KindNilPointer || err.GoType != "*bridge.Demo" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Moved", func(t *testing.T) {
		err := Moved("do-thing", "*bridge.Demo")
		if err.Kind != KindMoved {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMoved)
		}
	})

	t.Run("MissingExport", func(t *testing.T) {
		err := MissingExport("get-name")
		if err.Phase != PhaseLoad || !strings.Contains(err.Error(), `"get-name"`) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(PhaseLoad, KindInstantiation, cause, "instantiate guest")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}
