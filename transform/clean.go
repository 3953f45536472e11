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

package transform

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/chunketl/chunk"
)

// timeFormats accepted for the temporal column, tried in order. Fractional
// seconds are accepted after the seconds field even when a format omits them.
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTimestamp parses a temporal value. Values that cannot be parsed become
// null, never a zero time. The result is always in UTC.
func ParseTimestamp(s string) sql.NullTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullTime{}
	}
	for _, f := range timeFormats {
		if t, err := time.Parse(f, s); err == nil {
			return sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	return sql.NullTime{}
}

// ParseNumber parses a numeric value. Values that cannot be parsed, including
// missing values, NaN and infinities, become 0, never null.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CleanRecord converts a source record to a Row. colMap maps record fields to
// columns, as computed by chunk.MapColumns from the header. Fields of unknown
// columns are dropped, and columns missing from the header get the missing
// value policy of their kind.
func CleanRecord(colMap []int, record []string) chunk.Row {
	var fields [len(chunk.Columns)]string
	for i, v := range record {
		if i >= len(colMap) || colMap[i] < 0 {
			continue
		}
		fields[colMap[i]] = v
	}
	var row chunk.Row
	for i, c := range chunk.Columns {
		switch c.Kind {
		case chunk.Text:
			*row.TextField(i) = fields[i]
		case chunk.Timestamp:
			row.Date = ParseTimestamp(fields[i])
		case chunk.Number:
			*row.NumberField(i) = ParseNumber(fields[i])
		}
	}
	return row
}

// CleanChunk derives the cleaned chunk from a raw or an already cleaned one,
// keeping the sequence number. It has no state, and cleaning a cleaned chunk
// reproduces it exactly.
func CleanChunk(c *chunk.Chunk) *chunk.Chunk {
	res := &chunk.Chunk{Sequence: c.Sequence, Stage: chunk.Cleaned}
	if c.Stage == chunk.Cleaned {
		colMap := chunk.MapColumns(chunk.ColumnNames())
		res.Rows = make([]chunk.Row, len(c.Rows))
		for i := range c.Rows {
			res.Rows[i] = CleanRecord(colMap, c.Rows[i].Record())
		}
		return res
	}
	colMap := chunk.MapColumns(c.Header)
	res.Rows = make([]chunk.Row, len(c.Records))
	for i, rec := range c.Records {
		res.Rows[i] = CleanRecord(colMap, rec)
	}
	return res
}
