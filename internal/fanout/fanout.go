package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

const (
	// DefaultPerItemTimeout is the default timeout for each fetch.
	DefaultPerItemTimeout = 10 * time.Second

	// DefaultParallelism bounds the number of fetches in flight.
	DefaultParallelism = 8
)

// Options tune a fan-out.
type Options struct {
	// Required is the number of successful fetches needed; <= 0 means all.
	Required int

	// Timeout bounds each fetch; <= 0 uses DefaultPerItemTimeout.
	Timeout time.Duration

	// Parallelism bounds concurrent fetches; <= 0 uses DefaultParallelism.
	Parallelism int
}

// Item is one fetched value.
type Item[T any] struct {
	Key   string
	Value T
}

// Result represents the outcome of a fan-out.
type Result[T any] struct {
	Success   bool
	Responses int
	Required  int
	Items     int

	// Values are in the order of the input keys; failed keys are absent.
	Values []Item[T]

	// Errors holds one error per failed key.
	Errors []error

	ErrorMessage string
}

// Err returns nil on success, otherwise every fetch error combined.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if len(r.Errors) == 0 {
		return fmt.Errorf("fanout: %s", r.ErrorMessage)
	}
	return multierr.Combine(r.Errors...)
}

// FetchFunc fetches the value of a single key.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Fetch fans fn out over keys and returns once every fetch finished or ctx
// is done.
func Fetch[T any](ctx context.Context, keys []string, opts Options, fn FetchFunc[T]) Result[T] {
	if len(keys) == 0 {
		return Result[T]{Success: true}
	}

	required := opts.Required
	if required <= 0 {
		required = len(keys)
	}
	if required > len(keys) {
		return Result[T]{
			Success:      false,
			Required:     required,
			Items:        len(keys),
			ErrorMessage: fmt.Sprintf("required=%d exceeds item count=%d", required, len(keys)),
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPerItemTimeout
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	var (
		mu     sync.Mutex
		values = make([]*Item[T], len(keys))
		errs   = make([]error, len(keys))
		wg     sync.WaitGroup
		sem    = make(chan struct{}, parallelism)
	)

	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				errs[i] = fmt.Errorf("item %s: %w", key, ctx.Err())
				mu.Unlock()
				return
			}

			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			value, err := fn(itemCtx, key)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs[i] = fmt.Errorf("item %s: %w", key, err)
				return
			}
			values[i] = &Item[T]{Key: key, Value: value}
		}(i, key)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return Result[T]{
			Success:      false,
			Required:     required,
			Items:        len(keys),
			ErrorMessage: fmt.Sprintf("context cancelled: %v", ctx.Err()),
		}
	}

	res := Result[T]{Required: required, Items: len(keys)}
	for i := range keys {
		if values[i] != nil {
			res.Values = append(res.Values, *values[i])
			res.Responses++
		}
		if errs[i] != nil {
			res.Errors = append(res.Errors, errs[i])
		}
	}

	if res.Responses >= required {
		res.Success = true
		return res
	}

	res.ErrorMessage = fmt.Sprintf("not enough responses: responses=%d required=%d items=%d", res.Responses, required, len(keys))
	if len(res.Errors) > 0 {
		res.ErrorMessage += fmt.Sprintf(" errors=%v", res.Errors[:min(3, len(res.Errors))])
	}
	return res
}
