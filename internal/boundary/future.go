package boundary

import (
	"context"
	"sync"
)

// Future carries the result of one call.
type Future struct {
	once    sync.Once
	done    chan struct{}
	payload []byte
	err     error
}

func newFuture() *Future { return &Future{done: make(chan struct{})} }

// resolve sets the result; only the first call has an effect.
func (f *Future) resolve(payload []byte, err error) {
	f.once.Do(func() {
		f.payload, f.err = payload, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx ends. A ctx error does not
// cancel the underlying call.
func (f *Future) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.payload, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
