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

// Package load bulk-inserts cleaned chunks into a relational table within a
// single transaction, so that a run is either fully committed or not visible
// at all.
package load

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// LoadError is returned when the schema statement, a bulk insert or the final
// commit fails. The load transaction is rolled back.
type LoadError struct {
	Sequence int // the failing chunk, or -1 when not specific to a chunk
	Err      error
}

func (e *LoadError) Error() string {
	if e.Sequence < 0 {
		return fmt.Sprintf("load failed: %s", e.Err)
	}
	return fmt.Sprintf("load failed at chunk %d: %s", e.Sequence, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader copies cleaned chunks into a table.
type Loader struct {
	Store    Store
	Schema   string         // idempotent DDL creating the table if absent
	Observer chunk.Observer // optional
}

// Load creates the table if needed, then copies every cleaned artifact into it
// in sequence order and commits once at the end. It returns the number of rows
// loaded. On failure it returns 0 and a *LoadError, and nothing of this run is
// committed.
//
// Every run appends: loading the same artifacts twice duplicates the rows.
func (l *Loader) Load(ctx context.Context, artifacts []chunk.Artifact, table string) (int, error) {
	start := time.Now()
	sorted, err := chunk.SortBySequence(artifacts, chunk.Cleaned)
	if err != nil {
		return 0, &LoadError{Sequence: -1, Err: errors.Annotate(err, "invalid artifact list")}
	}
	if strings.TrimSpace(l.Schema) == "" {
		return 0, &LoadError{Sequence: -1, Err: errors.Reason("empty schema statement")}
	}
	if err := l.Store.Exec(ctx, l.Schema); err != nil {
		return 0, &LoadError{Sequence: -1, Err: errors.Annotate(err, "failed to create table %s", table)}
	}
	session, err := l.Store.Begin(ctx)
	if err != nil {
		return 0, &LoadError{Sequence: -1, Err: errors.Annotate(err, "failed to start load")}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := session.Rollback(); err != nil {
			logging.Warningf(ctx, "rollback of %s: %s", table, err.Error())
		}
	}()

	columns := chunk.ColumnNames()
	total := 0
	for i, a := range sorted {
		n, err := l.loadChunk(ctx, session, a, table, columns)
		if err != nil {
			return 0, &LoadError{Sequence: a.Sequence, Err: err}
		}
		total += n
		chunk.Notify(ctx, l.Observer, chunk.Progress{
			Step:       chunk.StepLoad,
			Artifact:   a,
			Index:      i + 1,
			Total:      len(sorted),
			Cumulative: total,
		})
	}
	if err := session.Commit(); err != nil {
		return 0, &LoadError{Sequence: -1, Err: errors.Annotate(err, "failed to commit %d rows", total)}
	}
	committed = true
	logging.Infof(ctx, "loaded %d rows into %s in %.1fs",
		total, table, time.Since(start).Seconds())
	return total, nil
}

func (l *Loader) loadChunk(ctx context.Context, s Session, a chunk.Artifact, table string, columns []string) (int, error) {
	c, err := chunk.ReadChunk(a.Location)
	if err != nil {
		return 0, errors.Annotate(err, "failed to read %s", a.Location)
	}
	if c.Stage != chunk.Cleaned {
		return 0, errors.Reason("%s holds a %s chunk", a.Location, c.Stage)
	}
	rows := make([][]any, len(c.Rows))
	for i := range c.Rows {
		rows[i] = c.Rows[i].Values()
	}
	if err := s.Copy(ctx, table, columns, rows); err != nil {
		return 0, errors.Annotate(err, "failed to copy %s", a.Location)
	}
	return len(rows), nil
}
