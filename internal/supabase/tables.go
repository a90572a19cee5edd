package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/npezzotti/diayouth/internal/retry"
	"github.com/supabase-community/postgrest-go"
	"github.com/tidwall/gjson"
)

var (
	ErrDuplicate        = errors.New("supabase: duplicate row")
	ErrMissingReference = errors.New("supabase: referenced row does not exist")
)

// Query narrows a table read. Columns may use the service's embedding
// syntax, e.g. "*, event_categories(name)".
type Query struct {
	Columns   string
	Eq        map[string]string
	In        map[string][]string
	Order     string
	Ascending bool
	Limit     int
}

func (q Query) apply(fb *postgrest.FilterBuilder) *postgrest.FilterBuilder {
	// Filters are added in a stable order so requests are reproducible.
	for _, col := range sortedKeys(q.Eq) {
		fb = fb.Eq(col, q.Eq[col])
	}
	for _, col := range sortedKeys(q.In) {
		fb = fb.In(col, q.In[col])
	}
	if q.Order != "" {
		fb = fb.Order(q.Order, &postgrest.OrderOpts{Ascending: q.Ascending})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}
	return fb
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// restError maps the Postgres error code PostgREST reports as "(code) msg".
func restError(table string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "(23505)"):
		return fmt.Errorf("%s: %w", table, ErrDuplicate)
	case strings.Contains(msg, "(23503)"):
		return fmt.Errorf("%s: %w", table, ErrMissingReference)
	}
	return fmt.Errorf("%s: %w", table, err)
}

func columns(c string) string {
	if c == "" {
		return "*"
	}
	return c
}

type restResult struct {
	raw   []byte
	count int64
	err   error
}

// bounded runs a postgrest call under ctx and the client timeout. postgrest
// calls take no context, so a call that outlives the deadline is abandoned
// and its result dropped.
func (c *Client) bounded(ctx context.Context, table string, call func() ([]byte, int64, error)) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan restResult, 1)
	go func() {
		raw, n, err := call()
		done <- restResult{raw: raw, count: n, err: err}
	}()

	select {
	case res := <-done:
		return res.raw, res.count, restError(table, res.err)
	case <-ctx.Done():
		c.log.WithField("table", table).Warn("rest call abandoned")
		return nil, 0, fmt.Errorf("%s: %w", table, ctx.Err())
	}
}

func decodeRows(table string, raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode rows: %w", table, err)
	}
	return nil
}

// Select reads rows of table into out.
func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	return retry.Do(ctx, c.reads, func(ctx context.Context) error {
		fb := q.apply(c.rest.From(table).Select(columns(q.Columns), "", false))
		raw, _, err := c.bounded(ctx, table, fb.Execute)
		if err != nil {
			return err
		}
		return decodeRows(table, raw, out)
	})
}

// Count returns the number of rows of table matching q.
func (c *Client) Count(ctx context.Context, table string, q Query) (int, error) {
	var n int64
	err := retry.Do(ctx, c.reads, func(ctx context.Context) error {
		var err error
		_, n, err = c.bounded(ctx, table, q.apply(c.rest.From(table).Select("*", "exact", true)).Execute)
		return err
	})
	return int(n), err
}

// Insert adds value to table and decodes the stored rows into out when out
// is non-nil.
func (c *Client) Insert(ctx context.Context, table string, value, out any) error {
	fb := c.rest.From(table).Insert(value, false, "", "representation", "")
	return c.execute(ctx, table, fb, out)
}

// Update changes the row of table with the given id.
func (c *Client) Update(ctx context.Context, table string, id int64, value, out any) error {
	fb := c.rest.From(table).Update(value, "representation", "").Eq("id", strconv.FormatInt(id, 10))
	return c.execute(ctx, table, fb, out)
}

// Upsert inserts value or merges it into the row matching onConflict.
func (c *Client) Upsert(ctx context.Context, table string, value any, onConflict string, out any) error {
	fb := c.rest.From(table).Upsert(value, onConflict, "representation", "")
	return c.execute(ctx, table, fb, out)
}

// Delete removes the rows of table matching eq and reports how many were
// removed.
func (c *Client) Delete(ctx context.Context, table string, eq map[string]string) (int, error) {
	if len(eq) == 0 {
		return 0, errors.New("supabase: refusing unfiltered delete")
	}

	fb := Query{Eq: eq}.apply(c.rest.From(table).Delete("representation", ""))
	raw, _, err := c.bounded(ctx, table, fb.Execute)
	if err != nil {
		return 0, err
	}
	return len(gjson.ParseBytes(raw).Array()), nil
}

// DeleteById removes the row of table with the given id.
func (c *Client) DeleteById(ctx context.Context, table string, id int64) (int, error) {
	return c.Delete(ctx, table, map[string]string{"id": strconv.FormatInt(id, 10)})
}

func (c *Client) execute(ctx context.Context, table string, fb *postgrest.FilterBuilder, out any) error {
	raw, _, err := c.bounded(ctx, table, fb.Execute)
	if err != nil {
		return err
	}
	return decodeRows(table, raw, out)
}
