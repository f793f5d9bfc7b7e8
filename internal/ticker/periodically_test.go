package ticker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryKeepsGoingAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	err := Every(ctx, time.Millisecond, slog.Default(), func(context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
		}
		return errors.New("boom")
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}
