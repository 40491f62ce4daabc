// Package scripting runs user-supplied JavaScript value transforms. Each
// engine wraps one goja runtime; scripts see the input as the global `value`
// and their final expression becomes the output.
package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

type Engine struct {
	vm *goja.Runtime
}

func NewEngine() *Engine {
	return &Engine{vm: goja.New()}
}

// Transform evaluates script with `value` bound to the input and returns the
// script's result as a string. Context cancellation interrupts a running
// script.
func (e *Engine) Transform(ctx context.Context, script, value string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.vm.Set("value", value); err != nil {
		return "", fmt.Errorf("scripting: bind value: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := e.vm.RunString(script)
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("scripting: %w", err)
	}
	return result.String(), nil
}
