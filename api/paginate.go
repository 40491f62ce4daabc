package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/wudi/docexport/observability"
)

// listPage mirrors the store's paginated list envelope. A response is only
// treated as paginated when both keys are present.
type listPage struct {
	Results    json.RawMessage `json:"results"`
	Pagination json.RawMessage `json:"pagination"`
}

type cursor struct {
	Next *string `json:"next"`
}

// FetchAll issues a GET against endpoint and, when the response carries the
// {results, pagination:{next}} envelope, follows next links until exhausted,
// concatenating result items in arrival order. A response outside that shape
// is returned unmodified as a single raw item. Any non-2xx status aborts the
// aggregation; no partial result is returned.
func (c *Client) FetchAll(ctx context.Context, endpoint string, query url.Values) ([]json.RawMessage, error) {
	next := withQuery(c.resolve(endpoint), query)
	var items []json.RawMessage

	for pageNum := 0; next != ""; pageNum++ {
		raw, err := c.GetBinary(ctx, next)
		if err != nil {
			return nil, err
		}

		var page listPage
		if err := json.Unmarshal(raw, &page); err != nil || page.Results == nil || page.Pagination == nil {
			if pageNum > 0 {
				return nil, fmt.Errorf("api: paginated response at %s lost its list shape", next)
			}
			return []json.RawMessage{json.RawMessage(raw)}, nil
		}

		var results []json.RawMessage
		if err := json.Unmarshal(page.Results, &results); err != nil {
			return nil, fmt.Errorf("api: decode results at %s: %w", next, err)
		}
		items = append(items, results...)

		var cur cursor
		if err := json.Unmarshal(page.Pagination, &cur); err != nil {
			return nil, fmt.Errorf("api: decode pagination at %s: %w", next, err)
		}
		next = ""
		if cur.Next != nil {
			next = *cur.Next
		}
	}

	c.log.Debug("pagination aggregated", observability.String("endpoint", endpoint), observability.Int("items", len(items)))
	return items, nil
}

// FetchAllInto aggregates like FetchAll and unmarshals every item into a
// slice of T.
func FetchAllInto[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	raw, err := c.FetchAll(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, fmt.Errorf("api: decode item %d from %s: %w", i, endpoint, err)
		}
	}
	return out, nil
}
