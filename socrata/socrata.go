// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package socrata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// Client for querying SODA resources.
type Client struct {
	appToken string // optional; raises the server's rate limits
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client with an optional app token and injects it into
// the context.
func UseClient(ctx context.Context, appToken string) context.Context {
	return context.WithValue(ctx, clientContextKey, &Client{appToken: appToken})
}

// values adds the client parameters to the query values.
func (c *Client) values(v url.Values) url.Values {
	if c.appToken != "" {
		v.Set("$$app_token", c.appToken)
	}
	return v
}

// Query is a builder for a SODA query against a single resource endpoint, e.g.
// https://data.iowa.gov/resource/m3tr-qhgy.csv .
type Query struct {
	endpoint string
	columns  []string // $select; all columns when empty
	where    string   // $where
	order    string   // $order
	limit    int      // $limit; server default when 0
	offset   int      // $offset
}

// NewQuery creates a new query.
func NewQuery(endpoint string) *Query {
	return &Query{endpoint: endpoint}
}

// Copy creates a copy of the query. It is primarily used in its builder
// methods, which always leave the original query intact.
func (q *Query) Copy() *Query {
	q2 := *q
	q2.columns = append([]string(nil), q.columns...)
	return &q2
}

// Select constrains the query result to only these columns.
func (q *Query) Select(columns ...string) *Query {
	q2 := q.Copy()
	q2.columns = columns
	return q2
}

// Between filters the rows to lo <= column <= hi. Values are quoted as SoQL
// strings, which is what floating timestamp columns expect.
func (q *Query) Between(column, lo, hi string) *Query {
	q2 := q.Copy()
	q2.where = fmt.Sprintf("%s BETWEEN %s AND %s", column, quote(lo), quote(hi))
	return q2
}

// Order sets the order of the rows. It is required for stable offset paging.
func (q *Query) Order(column string) *Query {
	q2 := q.Copy()
	q2.order = column
	return q2
}

// Limit sets the maximum number of rows in a page.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		n = 0
	}
	q2 := q.Copy()
	q2.limit = n
	return q2
}

// Offset sets the number of rows to skip.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		n = 0
	}
	q2 := q.Copy()
	q2.offset = n
	return q2
}

// quote a SoQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Values returns the query values for the query. Each call creates a new
// object, so the caller is free to modify it without affecting the query.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	if len(q.columns) > 0 {
		v.Set("$select", strings.Join(q.columns, ","))
	}
	if q.where != "" {
		v.Set("$where", q.where)
	}
	if q.order != "" {
		v.Set("$order", q.order)
	}
	if q.limit > 0 {
		v.Set("$limit", fmt.Sprintf("%d", q.limit))
	}
	if q.offset > 0 {
		v.Set("$offset", fmt.Sprintf("%d", q.offset))
	}
	return v
}

// Page is a single page of the query result, as text.
type Page struct {
	Header  []string
	Records [][]string
}

// Len is the number of rows in the page.
func (p *Page) Len() int {
	return len(p.Records)
}

// ReadPage executes the query using the Client from the context and downloads
// one page of rows. Transport failures, non-2xx responses and malformed CSV are
// errors. An empty body is a page with no rows.
func (q *Query) ReadPage(ctx context.Context) (*Page, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("Query.ReadPage: no client in context")
	}
	resp, err := fetch.GetRetry(ctx, q.endpoint, client.values(q.Values()), nil)
	if err != nil {
		return nil, errors.Annotate(err, "Query.ReadPage: failed to fetch URL")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Reason("Query.ReadPage: HTTP status %s", resp.Status)
	}
	page, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "Query.ReadPage: failed to parse page")
	}
	logging.Debugf(ctx, "Socrata: fetched %d rows at offset %d", page.Len(), q.offset)
	return page, nil
}

// ParseCSV reads a CSV page with a header line. Every record must have as many
// fields as the header.
func ParseCSV(r io.Reader) (*Page, error) {
	reader := csv.NewReader(r)
	var page Page
	header, err := reader.Read()
	if err == io.EOF {
		return &page, nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to read CSV header")
	}
	page.Header = header
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV record %d", len(page.Records)+1)
		}
		page.Records = append(page.Records, rec)
	}
	return &page, nil
}

// Dataset is a SODA resource with a temporal column used for range filtering.
type Dataset struct {
	Endpoint   string // resource URL in CSV format
	DateColumn string // the temporal column to filter on
	OrderBy    string // stable order for paging, e.g. ":id"
}

// FetchPage downloads the rows whose temporal column is within the inclusive
// range, at most limit rows starting at offset.
func (d *Dataset) FetchPage(ctx context.Context, r chunk.DateRange, limit, offset int) (*Page, error) {
	lo, hi := r.Bounds()
	q := NewQuery(d.Endpoint).Select("*").Between(d.DateColumn, lo, hi).Limit(limit).Offset(offset)
	if d.OrderBy != "" {
		q = q.Order(d.OrderBy)
	}
	return q.ReadPage(ctx)
}
