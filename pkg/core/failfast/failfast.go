// Package failfast turns broken invariants and misuse into immediate panics.
//
// Every panic value is an error, so a recovering caller can match the cause
// with errors.Is.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics if err != nil, attaching the current stack
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics if condition is false
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// Violation panics with cause wrapped, so recover() callers can errors.Is it
func Violation(cause error, message string, args ...interface{}) {
	panic(fmt.Errorf("fail-fast: %s: %w", fmt.Sprintf(message, args...), cause))
}

// NotNil panics if v is nil, including typed nil pointers, funcs, maps and chans
func NotNil(v interface{}, name string) {
	if v == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		if rv.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil", name))
		}
	}
}
