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

package chunk

import (
	"fmt"
	"time"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// Stage of an artifact in the pipeline.
type Stage string

// Values of Stage.
const (
	Raw     = Stage("raw")
	Cleaned = Stage("cleaned")
)

// Artifact is a reference to a materialized chunk file. It never holds the rows
// themselves.
type Artifact struct {
	Sequence int    `json:"sequence"`
	Rows     int    `json:"rows"`
	Location string `json:"location"`
	Stage    Stage  `json:"stage"`
}

// String representation of the artifact, for logging.
func (a Artifact) String() string {
	return fmt.Sprintf("%s chunk %d (%d rows) at %s", a.Stage, a.Sequence, a.Rows, a.Location)
}

// Chunk is the content of an artifact file. Raw chunks keep the source header
// and records verbatim; cleaned chunks carry typed Rows.
type Chunk struct {
	Sequence int
	Stage    Stage
	Header   []string   // raw only
	Records  [][]string // raw only
	Rows     []Row      // cleaned only
}

// Len is the number of rows in the chunk.
func (c *Chunk) Len() int {
	if c.Stage == Cleaned {
		return len(c.Rows)
	}
	return len(c.Records)
}

// Locations flattens the artifacts into the list of their locations, in the
// same order.
func Locations(artifacts []Artifact) []string {
	res := make([]string, len(artifacts))
	for i, a := range artifacts {
		res[i] = a.Location
	}
	return res
}

// TotalRows sums up the row counts of the artifacts.
func TotalRows(artifacts []Artifact) int {
	total := 0
	for _, a := range artifacts {
		total += a.Rows
	}
	return total
}

// SortBySequence returns a copy of artifacts ordered by sequence number. It
// fails if two artifacts share a sequence number or if an artifact is not of
// the expected stage.
func SortBySequence(artifacts []Artifact, stage Stage) ([]Artifact, error) {
	res := make([]Artifact, len(artifacts))
	copy(res, artifacts)
	slices.SortFunc(res, func(a, b Artifact) bool { return a.Sequence < b.Sequence })
	for i, a := range res {
		if a.Stage != stage {
			return nil, errors.Reason("artifact %s: expected stage %s", a, stage)
		}
		if i > 0 && res[i-1].Sequence == a.Sequence {
			return nil, errors.Reason("duplicate sequence number %d", a.Sequence)
		}
	}
	return res, nil
}

// DateLayout is the format of the range boundaries.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses the YYYY-MM-DD boundaries of an inclusive range.
func NewDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if r.Start, err = time.Parse(DateLayout, start); err != nil {
		return DateRange{}, errors.Annotate(err, "invalid range start '%s'", start)
	}
	if r.End, err = time.Parse(DateLayout, end); err != nil {
		return DateRange{}, errors.Annotate(err, "invalid range end '%s'", end)
	}
	if r.End.Before(r.Start) {
		return DateRange{}, errors.Reason("range end %s is before start %s", end, start)
	}
	return r, nil
}

// Bounds returns the inclusive timestamp bounds of the range, from the first
// second of the start day to the last second of the end day.
func (r DateRange) Bounds() (lo, hi string) {
	return r.Start.Format(DateLayout) + "T00:00:00", r.End.Format(DateLayout) + "T23:59:59"
}

// String representation of the range.
func (r DateRange) String() string {
	return "[" + r.Start.Format(DateLayout) + ", " + r.End.Format(DateLayout) + "]"
}
