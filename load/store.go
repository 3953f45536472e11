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

package load

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/stockparfait/errors"
)

// NullSentinel is the token for an absent value in the bulk load text format.
// It must be exactly what lib/pq writes for a nil value in COPY text format.
const NullSentinel = `\N`

// Store is the destination database.
type Store interface {
	// Exec runs a single statement in its own committed transaction.
	Exec(ctx context.Context, stmt string) error
	// Begin opens the transaction scope of a whole load.
	Begin(ctx context.Context) (Session, error)
}

// Session is a transaction. Nothing copied in it is visible until Commit.
type Session interface {
	// Copy bulk-inserts rows of values ordered as columns in one set-oriented
	// operation. A nil value is loaded as NULL.
	Copy(ctx context.Context, table string, columns []string, rows [][]any) error
	Commit() error
	Rollback() error
}

// QuoteTable quotes a table name which may be qualified by a schema name.
func QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// CopyStatement is the COPY FROM STDIN statement for the table and columns in
// the text format with the NullSentinel.
func CopyStatement(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = pq.QuoteIdentifier(c)
	}
	return "COPY " + QuoteTable(table) + " (" + strings.Join(cols, ", ") +
		") FROM STDIN WITH (FORMAT text, NULL" + pq.QuoteLiteral(NullSentinel) + ")"
}

// Postgres is a Store backed by PostgreSQL through lib/pq.
type Postgres struct {
	db *sql.DB
}

var _ Store = &Postgres{}

// NewPostgres wraps an open database handle using the "postgres" driver.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to the database described by dsn and checks that it is
// reachable.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "failed to connect to database")
	}
	return NewPostgres(db), nil
}

// Close the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Exec implements Store.
func (p *Postgres) Exec(ctx context.Context, stmt string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "failed to begin transaction")
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return errors.Annotate(err, "failed to execute statement")
	}
	if err := tx.Commit(); err != nil {
		return errors.Annotate(err, "failed to commit statement")
	}
	return nil
}

// Begin implements Store.
func (p *Postgres) Begin(ctx context.Context) (Session, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to begin transaction")
	}
	return &pgSession{tx: tx}, nil
}

type pgSession struct {
	tx *sql.Tx
}

// Copy implements Session. Rows are buffered by the driver and streamed to the
// server as a single COPY, which is flushed by the final empty Exec.
func (s *pgSession) Copy(ctx context.Context, table string, columns []string, rows [][]any) error {
	stmt, err := s.tx.PrepareContext(ctx, CopyStatement(table, columns))
	if err != nil {
		return errors.Annotate(err, "failed to start COPY into %s", table)
	}
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			stmt.Close()
			return errors.Annotate(err, "failed to copy row %d", i)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.Annotate(err, "failed to finish COPY into %s", table)
	}
	if err := stmt.Close(); err != nil {
		return errors.Annotate(err, "failed to close COPY into %s", table)
	}
	return nil
}

func (s *pgSession) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return errors.Annotate(err, "failed to commit")
	}
	return nil
}

func (s *pgSession) Rollback() error {
	if err := s.tx.Rollback(); err != nil {
		return errors.Annotate(err, "failed to roll back")
	}
	return nil
}
