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

// Package transform cleans raw chunks into typed chunks, one chunk at a time
// and with no state shared between chunks.
//
// The coercion policy differs by column kind: an unparsable temporal value
// becomes null, while an unparsable or missing numeric value becomes 0. Text
// values pass through unchanged. Malformed values are never errors; only
// failures to read or write artifacts are.
package transform

import (
	"context"
	"fmt"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

// TransformError is returned when an artifact cannot be read or written. It is
// fatal to the run.
type TransformError struct {
	Sequence int
	Location string // the input artifact
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for chunk %d at %s: %s", e.Sequence, e.Location, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Transformer writes a cleaned artifact for every input artifact.
type Transformer struct {
	Dest     string         // directory of the cleaned artifacts
	Workers  int            // chunks cleaned concurrently; 1 if not positive
	Observer chunk.Observer // optional
}

type job struct {
	index    int
	artifact chunk.Artifact
}

type result struct {
	index    int
	artifact chunk.Artifact
	err      error
}

func (t *Transformer) transformOne(ctx context.Context, j job) result {
	in := j.artifact
	fail := func(err error) result {
		return result{index: j.index, err: &TransformError{
			Sequence: in.Sequence,
			Location: in.Location,
			Err:      err,
		}}
	}
	if err := ctx.Err(); err != nil {
		return fail(errors.Annotate(err, "cancelled"))
	}
	c, err := chunk.ReadChunk(in.Location)
	if err != nil {
		return fail(errors.Annotate(err, "failed to read input"))
	}
	if c.Sequence != in.Sequence {
		return fail(errors.Reason("file holds chunk %d", c.Sequence))
	}
	out, err := chunk.WriteChunk(t.Dest, CleanChunk(c))
	if err != nil {
		return fail(errors.Annotate(err, "failed to write output"))
	}
	return result{index: j.index, artifact: out}
}

// Transform cleans the artifacts into Dest. The result corresponds one-to-one
// to the input, in the same order and with the same sequence numbers. Inputs
// may be raw or already cleaned artifacts. The first failure stops the
// remaining work and is returned as a *TransformError.
func (t *Transformer) Transform(ctx context.Context, artifacts []chunk.Artifact) ([]chunk.Artifact, error) {
	seen := make(map[int]struct{}, len(artifacts))
	jobs := make([]job, len(artifacts))
	for i, a := range artifacts {
		if _, ok := seen[a.Sequence]; ok {
			return nil, errors.Reason("duplicate sequence number %d", a.Sequence)
		}
		seen[a.Sequence] = struct{}{}
		jobs[i] = job{index: i, artifact: a}
	}
	workers := t.Workers
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := func(j job) result { return t.transformOne(ctx, j) }
	pm := iterator.ParallelMap(ctx, workers, iterator.FromSlice(jobs), f)
	defer iterator.Flush(pm)

	res := make([]chunk.Artifact, len(artifacts))
	var firstErr error
	done, cumulative := 0, 0
	iterator.Reduce[result, int](pm, 0, func(r result, n int) int {
		if firstErr != nil {
			return n
		}
		if r.err != nil {
			firstErr = r.err
			cancel()
			return n
		}
		res[r.index] = r.artifact
		done++
		cumulative += r.artifact.Rows
		chunk.Notify(ctx, t.Observer, chunk.Progress{
			Step:       chunk.StepTransform,
			Artifact:   r.artifact,
			Index:      done,
			Total:      len(artifacts),
			Cumulative: cumulative,
		})
		return n + 1
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(artifacts) {
		// The pool stops handing out jobs once ctx is done.
		for i, a := range res {
			if a.Stage != "" {
				continue
			}
			err := ctx.Err()
			if err == nil {
				err = errors.Reason("no result")
			}
			return nil, &TransformError{
				Sequence: artifacts[i].Sequence,
				Location: artifacts[i].Location,
				Err:      errors.Annotate(err, "chunk not transformed"),
			}
		}
	}
	logging.Infof(ctx, "transformed %d chunks (%d rows)", len(res), cumulative)
	return res, nil
}
