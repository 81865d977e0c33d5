package failfast

import (
	"errors"
	"strings"
	"testing"
)

func recoverError(t *testing.T, fn func()) (err error) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if !ok {
			t.Fatalf("Expected error panic value, got: %T", r)
		}
		err = e
	}()
	fn()
	return nil
}

func TestErr(t *testing.T) {
	if err := recoverError(t, func() { Err(nil) }); err != nil {
		t.Errorf("Err(nil) panicked: %v", err)
	}

	cause := errors.New("disk on fire")
	err := recoverError(t, func() { Err(cause) })
	if err == nil {
		t.Fatal("Expected panic, got none")
	}
	if !errors.Is(err, cause) {
		t.Errorf("panic value %v does not wrap cause", err)
	}
	if !strings.Contains(err.Error(), "goroutine") {
		t.Error("Expected stack trace in panic message")
	}
}

func TestIf(t *testing.T) {
	if err := recoverError(t, func() { If(true, "unused") }); err != nil {
		t.Errorf("If(true) panicked: %v", err)
	}

	err := recoverError(t, func() { If(false, "count must be >= %d", 1) })
	if err == nil {
		t.Fatal("Expected panic, got none")
	}
	if err.Error() != "fail-fast: count must be >= 1" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestViolation(t *testing.T) {
	sentinel := errors.New("pool is shut down")
	err := recoverError(t, func() { Violation(sentinel, "submit to %s", "pool") })
	if !errors.Is(err, sentinel) {
		t.Fatalf("Violation panic %v does not wrap sentinel", err)
	}
	if !strings.Contains(err.Error(), "submit to pool") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNotNil(t *testing.T) {
	var nilPtr *int
	var nilFunc func()
	var nilMap map[string]int
	value := 3

	tests := []struct {
		name      string
		value     interface{}
		wantPanic bool
	}{
		{"untyped nil", nil, true},
		{"typed nil pointer", nilPtr, true},
		{"nil func", nilFunc, true},
		{"nil map", nilMap, true},
		{"valid pointer", &value, false},
		{"valid func", func() {}, false},
		{"plain value", 42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := recoverError(t, func() { NotNil(tt.value, "thing") })
			if tt.wantPanic && err == nil {
				t.Error("Expected panic, got none")
			}
			if !tt.wantPanic && err != nil {
				t.Errorf("Unexpected panic: %v", err)
			}
		})
	}
}
