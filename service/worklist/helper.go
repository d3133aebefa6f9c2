package worklist

import (
	"context"
	"sync"
	"time"
)

// CompleteFunc produces the result of a pending item; ok=false skips it.
type CompleteFunc func(item *Item) (result interface{}, ok bool)

// AutoCompleter polls Pending and completes every item accepted by fn. It
// returns stop(), safe to call more than once; cancelling ctx stops it as
// well.
func AutoCompleter(ctx context.Context, svc Service, fn CompleteFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				items, _ := svc.Pending(ctx)
				for _, item := range items {
					if result, ok := fn(item); ok {
						_, _ = svc.Complete(ctx, item.ID, result)
					}
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
