package recognition

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

const (
	overflowRestartDelay = 250 * time.Millisecond
	minStreamBackoff     = 250 * time.Millisecond
	maxStreamBackoff     = 5 * time.Second
)

var errStreamEnded = errors.New("audio stream ended")

type streamer interface {
	Stream(writer io.Writer) error
}

// streamWithRetry pumps audio into writer until ctx is cancelled. Input
// overflows restart the stream straight away; every other failure is passed
// to report and retried with exponential backoff.
func streamWithRetry(
	ctx context.Context,
	source streamer,
	writer io.Writer,
	wait func(context.Context, time.Duration),
	logf func(string, ...any),
	report func(error),
) {
	backoff := minStreamBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := source.Stream(writer)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errStreamEnded
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("mic input overflow, restarting stream")
			backoff = minStreamBackoff
			wait(ctx, overflowRestartDelay)
			continue
		}

		logf("mic stream error, retrying in %s: %v", backoff, err)
		report(err)
		wait(ctx, backoff)
		backoff *= 2
		if backoff > maxStreamBackoff {
			backoff = maxStreamBackoff
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
