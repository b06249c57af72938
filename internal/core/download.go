package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/retry"
)

const (
	downloadAttempts = 3
	downloadDelay    = 2 * time.Second
	downloadTimeout  = 2 * time.Minute
)

// HTTPFetcher downloads repository archives over HTTP, retrying failed
// attempts with a doubling delay.
type HTTPFetcher struct {
	Client   *http.Client
	Clock    clock.Clock
	Attempts int
	Delay    time.Duration
}

// NewHTTPFetcher creates a fetcher with the default retry policy.
func NewHTTPFetcher(clk clock.Clock) *HTTPFetcher {
	if clk == nil {
		clk = clock.WallClock
	}
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: downloadTimeout},
		Clock:    clk,
		Attempts: downloadAttempts,
		Delay:    downloadDelay,
	}
}

// Fetch implements Fetcher. The file is written to dest.part and renamed
// into place once complete.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return f.fetchOnce(ctx, url, dest)
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			resolveLogger.Warningf("download attempt %d/%d of %s failed: %v", attempt, f.Attempts, url, err)
		},
		Attempts:    f.Attempts,
		Delay:       f.Delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       f.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
			return retry.LastError(err)
		}
		return err
	}
	return nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return err
	}
	resolveLogger.Debugf("downloaded %s (%s)", url, humanize.Bytes(uint64(n)))
	return nil
}
