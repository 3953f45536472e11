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

// Package table prints rows of text as CSV or as aligned text for a terminal.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/stockparfait/errors"
)

// Table of text cells. All rows, and the header when present, must have the
// same number of cells.
type Table struct {
	Header []string // optional
	Rows   [][]string
}

// NewTable with optional column headers.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// Add appends rows to the table.
func (t *Table) Add(rows ...[]string) {
	t.Rows = append(t.Rows, rows...)
}

// Params of table output.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = all
	NoHeader    bool // skip the header
	MaxColWidth int  // WriteText only; 0 = unlimited, otherwise >= 4
}

// lines returns the header (unless skipped) followed by the rows limited by
// p.Rows, and checks that they all have the same width.
func (t *Table) lines(p Params) ([][]string, error) {
	var res [][]string
	if !p.NoHeader && len(t.Header) > 0 {
		res = append(res, t.Header)
	}
	rows := t.Rows
	if p.Rows > 0 && len(rows) > p.Rows {
		rows = rows[:p.Rows]
	}
	res = append(res, rows...)
	for i, l := range res {
		if len(l) == 0 {
			return nil, errors.Reason("line %d is empty", i)
		}
		if len(l) != len(res[0]) {
			return nil, errors.Reason("line %d has %d cells, expected %d",
				i, len(l), len(res[0]))
		}
	}
	return res, nil
}

// WriteCSV writes the table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	lines, err := t.lines(p)
	if err != nil {
		return errors.Annotate(err, "invalid table")
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(lines); err != nil {
		return errors.Annotate(err, "failed to write CSV")
	}
	return nil
}

// clip shortens s to at most n runes, marking the cut with "..".
func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-2]) + ".."
}

// WriteText writes the table as left-aligned columns separated by " | ", with
// a dashed line under the header.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	lines, err := t.lines(p)
	if err != nil {
		return errors.Annotate(err, "invalid table")
	}
	if len(lines) == 0 {
		return nil
	}
	widths := make([]int, len(lines[0]))
	for _, l := range lines {
		for i, s := range l {
			if n := utf8.RuneCountInString(clip(s, p.MaxColWidth)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	write := func(l []string) error {
		cells := make([]string, len(l))
		for i, s := range l {
			cells[i] = fmt.Sprintf("%-*s", widths[i], clip(s, p.MaxColWidth))
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " | "), " "))
		return err
	}
	for i, l := range lines {
		if err := write(l); err != nil {
			return errors.Annotate(err, "failed to write line %d", i)
		}
		if i == 0 && !p.NoHeader && len(t.Header) > 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if _, err := fmt.Fprintln(w, strings.Join(dashes, "-+-")); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}
