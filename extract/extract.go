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

// Package extract pulls a date range from a paginated source page by page and
// writes every page to its own raw chunk artifact.
package extract

import (
	"context"
	"fmt"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/socrata"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// ExtractionError is returned when the source is unreachable, responds with a
// failure, or sends a page that cannot be parsed. It is fatal to the run.
type ExtractionError struct {
	Offset int // cursor offset of the failing page
	Page   int // sequence number the failing page would have had
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at page %d (offset %d): %s", e.Page, e.Offset, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageFetcher fetches at most limit rows of the range, starting at offset.
// socrata.Dataset is the production implementation.
type PageFetcher interface {
	FetchPage(ctx context.Context, r chunk.DateRange, limit, offset int) (*socrata.Page, error)
}

var _ PageFetcher = &socrata.Dataset{}

// Cursor tracks extraction progress within a single run. It is not persisted:
// every run starts at offset 0.
type Cursor struct {
	Offset int
	Range  chunk.DateRange
}

// Advance moves the cursor past a page of n confirmed rows.
func (c *Cursor) Advance(n int) {
	c.Offset += n
}

// Extractor writes raw chunks of a paginated source.
type Extractor struct {
	Source   PageFetcher
	PageSize int
	Observer chunk.Observer // optional
}

// Extract fetches the range page by page into raw artifacts under dest, in
// sequence order starting at 0. Only a page with no rows ends the loop; a page
// shorter than the page size does not, since the source may still have more.
// A range with no rows yields an empty list.
func (e *Extractor) Extract(ctx context.Context, r chunk.DateRange, dest string) ([]chunk.Artifact, error) {
	if e.PageSize <= 0 {
		return nil, &ExtractionError{
			Err: errors.Reason("page size must be positive, got %d", e.PageSize),
		}
	}
	cursor := Cursor{Range: r}
	artifacts := []chunk.Artifact{}
	for page := 0; ; page++ {
		p, err := e.Source.FetchPage(ctx, cursor.Range, e.PageSize, cursor.Offset)
		if err != nil {
			return artifacts, &ExtractionError{
				Offset: cursor.Offset,
				Page:   page,
				Err:    errors.Annotate(err, "failed to fetch page"),
			}
		}
		if p.Len() == 0 {
			break
		}
		if len(p.Header) == 0 {
			return artifacts, &ExtractionError{
				Offset: cursor.Offset,
				Page:   page,
				Err:    errors.Reason("page has %d rows but no header", p.Len()),
			}
		}
		a, err := chunk.WriteChunk(dest, &chunk.Chunk{
			Sequence: page,
			Stage:    chunk.Raw,
			Header:   p.Header,
			Records:  p.Records,
		})
		if err != nil {
			return artifacts, &ExtractionError{
				Offset: cursor.Offset,
				Page:   page,
				Err:    errors.Annotate(err, "failed to save page"),
			}
		}
		artifacts = append(artifacts, a)
		cursor.Advance(p.Len())
		chunk.Notify(ctx, e.Observer, chunk.Progress{
			Step:       chunk.StepExtract,
			Artifact:   a,
			Index:      len(artifacts),
			Cumulative: cursor.Offset,
		})
	}
	logging.Infof(ctx, "extracted %d rows of %s in %d chunks",
		cursor.Offset, r, len(artifacts))
	return artifacts, nil
}
