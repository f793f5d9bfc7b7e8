package ticker

import (
	"context"
	"log/slog"
	"time"
)

// Every runs task right away and then once per interval until ctx is done.
// A failed run is logged and the loop carries on.
func Every(ctx context.Context, interval time.Duration, logger *slog.Logger, task func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := task(ctx); err != nil {
			logger.Error("periodic task failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
