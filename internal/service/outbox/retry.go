package outbox

import (
	"context"
	"math"
	"time"
)

// backoff — экспоненциальная задержка между попытками: base, 2*base, 4*base...
type backoff time.Duration

func (b backoff) delay(attempt int) time.Duration {
	base := time.Duration(b)
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			return math.MaxInt64
		}
		delay *= 2
	}
	return delay
}

// wait блокируется на d или до отмены ctx.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
