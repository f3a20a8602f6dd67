package precise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is used by WaitForStatus when interval is zero.
const DefaultPollInterval = 2 * time.Second

// WaitForStatus polls the index until it reports want. It returns early with
// an error if the index reports StatusFailed, and with ErrNotFound if it
// disappears while waiting for anything other than deletion.
func (c *Client) WaitForStatus(ctx context.Context, name string, want IndexStatus, interval time.Duration) (*IndexInfo, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := c.DescribeIndex(ctx, name)
		if err != nil {
			return nil, err
		}
		if info.Status == want {
			return info, nil
		}
		if info.Status == StatusFailed {
			return info, fmt.Errorf("index %q failed while waiting for %s", name, want)
		}
		c.logger.Debug("waiting for index",
			zap.String("index", name),
			zap.String("status", string(info.Status)),
			zap.String("want", string(want)),
		)

		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitUntilReady waits for a freshly created or optimizing index.
func (c *Client) WaitUntilReady(ctx context.Context, name string, interval time.Duration) (*IndexInfo, error) {
	return c.WaitForStatus(ctx, name, StatusReady, interval)
}

// WaitUntilDeleted polls until the service no longer knows the index.
func (c *Client) WaitUntilDeleted(ctx context.Context, name string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := c.DescribeIndex(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
