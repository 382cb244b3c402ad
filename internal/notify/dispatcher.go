package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/metrics"
)

// Dispatcher runs notification sends in the background. A failed send is
// logged and counted, never returned to the caller that queued it.
type Dispatcher struct {
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher whose sends are each bounded by timeout.
func NewDispatcher(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{timeout: timeout, logger: logger.Named("dispatcher")}
}

// Go starts send in a new goroutine. kind labels logs and metrics; fields are
// attached to the log line.
func (d *Dispatcher) Go(kind string, send func(ctx context.Context) (string, error), fields ...zap.Field) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		fields = append(fields, zap.String("kind", kind))
		id, err := send(ctx)
		if err != nil {
			metrics.RecordNotification(kind, "failed")
			d.logger.Error("notification failed", append(fields, zap.Error(err))...)
			return
		}
		metrics.RecordNotification(kind, "sent")
		d.logger.Info("notification sent", append(fields, zap.String("message_id", id))...)
	}()
}

// Wait blocks until every queued send finishes or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
