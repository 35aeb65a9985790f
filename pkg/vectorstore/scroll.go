package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

const filteredScrollAttempts = 3

// ScrollAll drains every point matching the filter. Filtered scrolls the
// store rejects with a client error are retried with a short backoff; once
// the attempts are spent the scan falls back to an unfiltered drain with
// the filter applied locally, so a missing payload index degrades to a
// slower read instead of an outage. Both paths stop at the configured
// point cap.
func (c *Client) ScrollAll(ctx context.Context, collection string, filter *Filter) ([]Point, error) {
	if c == nil {
		return nil, nil
	}

	var points []Point
	backoff := retry.WithMaxRetries(filteredScrollAttempts-1, retry.NewConstant(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		got, err := c.scrollPages(ctx, collection, filter)
		if err != nil {
			if errors.Is(err, ErrFilterRejected) {
				return retry.RetryableError(err)
			}
			return err
		}
		points = got
		return nil
	})
	if err == nil {
		return points, nil
	}
	if !errors.Is(err, ErrFilterRejected) {
		return nil, err
	}

	c.metrics.IncScanFallback(collection)
	c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
		"collection": collection,
		"error":      err.Error(),
	}), "filtered scroll rejected, falling back to full scan")

	all, err := c.scrollPages(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	matched := make([]Point, 0, len(all))
	for _, point := range all {
		if filter.Matches(point.Payload) {
			matched = append(matched, point)
		}
	}
	return matched, nil
}

func (c *Client) scrollPages(ctx context.Context, collection string, filter *Filter) ([]Point, error) {
	pageSize := c.cfg.ScrollPageSize
	if pageSize <= 0 {
		pageSize = 250
	}
	maxTotal := c.cfg.MaxScrollTotal
	if maxTotal <= 0 {
		maxTotal = 100_000
	}

	var (
		points []Point
		offset json.RawMessage
	)
	for {
		page, next, err := c.Scroll(ctx, collection, filter, pageSize, offset)
		if err != nil {
			return nil, err
		}
		points = append(points, page...)
		if len(points) >= maxTotal {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"collection": collection,
				"cap":        maxTotal,
			}), "scroll truncated at point cap")
			return points[:maxTotal], nil
		}
		if next == nil || len(page) == 0 {
			return points, nil
		}
		offset = next
	}
}
