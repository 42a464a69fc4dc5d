package password

import (
	"context"
	"regexp"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// DefaultScriptTimeout bounds a script evaluation
const DefaultScriptTimeout = 2 * time.Second

// Script evaluates a small JavaScript expression in a fresh goja VM. The
// captured text (if Re is set) is bound to `input`; without an Expression
// the capture itself is evaluated. The VM has no host bindings beyond
// `input` and is interrupted on timeout or context cancellation.
type Script struct {
	Re         *regexp.Regexp
	From       string
	Expression string
	Timeout    time.Duration
}

func (Script) Kind() string { return KindScript }

func (s Script) Locate(ctx context.Context, src Source) (string, error) {
	input := ""
	if s.Re != nil {
		v, ok := capture(s.Re, src.text(s.From))
		if !ok {
			return "", ErrNotFound
		}
		input = v
	}

	code := s.Expression
	if code == "" {
		code = input
	}

	out, err := evaluate(ctx, code, input, s.timeout())
	if err != nil {
		return "", err
	}
	return nonEmpty(out)
}

func (s Script) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultScriptTimeout
}

func evaluate(ctx context.Context, code, input string, timeout time.Duration) (string, error) {
	vm := goja.New()
	if err := vm.Set("input", input); err != nil {
		return "", errors.Wrap(err, "password: binding input")
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	v, err := vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", errors.Errorf("password: script interrupted: %v", interrupted.Value())
		}
		return "", errors.Wrap(err, "password: script failed")
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", ErrNotFound
	}
	return v.String(), nil
}
