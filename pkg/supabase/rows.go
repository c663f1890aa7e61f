package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edgeflare/supactl/pkg/metrics"
	"go.uber.org/zap"
)

// Query returns up to limit rows of a table matching every filter entry.
// A zero limit means DefaultLimit; a negative one is an error. On failure it
// returns an empty slice together with the error.
func (c *Client) Query(ctx context.Context, name string, filter Filter, limit int) ([]Row, error) {
	if limit < 0 {
		return []Row{}, fmt.Errorf("query %s: %w", name, ErrNegativeLimit)
	}
	if limit == 0 {
		limit = DefaultLimit
	}

	rows, err := c.query(ctx, name, filter, limit)
	if err != nil {
		c.logger.Error("could not query table", zap.String("table", name), zap.Error(err))
		metrics.OperationErrors.WithLabelValues("query").Inc()
		return []Row{}, err
	}

	c.logger.Debug("queried table", zap.String("table", name), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) query(ctx context.Context, name string, filter Filter, limit int) ([]Row, error) {
	cl := c.newCall(ctx)
	b, err := filter.apply(cl.rest.From(name).Select("*", "", false))
	if err != nil {
		return nil, err
	}

	body, _, err := b.Limit(limit, "").Execute()
	if err != nil {
		return nil, cl.err(err)
	}
	return decodeRows(body)
}

// Insert adds one row and returns it as stored, including server-assigned
// columns. values is anything that encodes to a JSON object, such as a Row
// or a map.
func (c *Client) Insert(ctx context.Context, name string, values any) (Row, error) {
	rows, err := c.insert(ctx, name, values)
	if err != nil {
		return Row{}, c.writeFailed("insert", name, err)
	}

	c.logger.Info("inserted row", zap.String("table", name))
	if len(rows) == 0 {
		return Row{}, nil
	}
	return rows[0], nil
}

func (c *Client) insert(ctx context.Context, name string, values any) ([]Row, error) {
	payload, err := marshalValue(values)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}

	cl := c.newCall(ctx)
	body, _, err := cl.rest.From(name).Insert(json.RawMessage(payload), false, "", "representation", "").Execute()
	if err != nil {
		return nil, cl.err(err)
	}
	return decodeRows(body)
}

// Update sets values on every row matching filter and returns the updated
// rows. An empty filter is refused with ErrEmptyFilter.
func (c *Client) Update(ctx context.Context, name string, filter Filter, values any) ([]Row, error) {
	rows, err := c.update(ctx, name, filter, values)
	if err != nil {
		return nil, c.writeFailed("update", name, err)
	}

	c.logger.Info("updated rows", zap.String("table", name), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) update(ctx context.Context, name string, filter Filter, values any) ([]Row, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}
	payload, err := marshalValue(values)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}

	cl := c.newCall(ctx)
	b, err := filter.apply(cl.rest.From(name).Update(json.RawMessage(payload), "representation", ""))
	if err != nil {
		return nil, err
	}
	body, _, err := b.Execute()
	if err != nil {
		return nil, cl.err(err)
	}
	return decodeRows(body)
}

// Delete removes every row matching filter and returns the removed rows. An
// empty filter is refused with ErrEmptyFilter.
func (c *Client) Delete(ctx context.Context, name string, filter Filter) ([]Row, error) {
	rows, err := c.delete(ctx, name, filter)
	if err != nil {
		return nil, c.writeFailed("delete", name, err)
	}

	c.logger.Info("deleted rows", zap.String("table", name), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) delete(ctx context.Context, name string, filter Filter) ([]Row, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}

	cl := c.newCall(ctx)
	b, err := filter.apply(cl.rest.From(name).Delete("representation", ""))
	if err != nil {
		return nil, err
	}
	body, _, err := b.Execute()
	if err != nil {
		return nil, cl.err(err)
	}
	return decodeRows(body)
}

func (c *Client) writeFailed(op, table string, err error) error {
	c.logger.Error("could not "+op, zap.String("table", table), zap.Error(err))
	metrics.OperationErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("%s %s: %w", op, table, err)
}
