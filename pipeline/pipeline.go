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

// Package pipeline sequences the extract, transform and load stages of a run.
//
// Stages run strictly one after another. Each stage hands the next one a
// Manifest, the ordered list of the artifacts it produced, saved as JSON under
// the storage root, so that every stage can also run as a separate process.
// Failures of a stage are retried at the stage level a bounded number of times
// with a fixed delay; the stages themselves never retry.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/config"
	"github.com/stockparfait/chunketl/extract"
	"github.com/stockparfait/chunketl/load"
	"github.com/stockparfait/chunketl/transform"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// RawDir is the directory of raw artifacts under the storage root.
func RawDir(root string) string { return filepath.Join(root, "raw") }

// CleanDir is the directory of cleaned artifacts under the storage root.
func CleanDir(root string) string { return filepath.Join(root, "clean") }

// ManifestPath is the manifest file written by the step.
func ManifestPath(root string, step chunk.Step) string {
	return filepath.Join(root, string(step)+".json")
}

// Runner runs the stages of the pipeline with a given configuration.
type Runner struct {
	Config   *config.Config
	Source   extract.PageFetcher // required for Extract
	Store    load.Store          // required for Load
	Schema   string              // required for Load
	Observer chunk.Observer      // optional

	// Sleep waits between retries; it returns early with an error when ctx is
	// done. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry calls f until it succeeds, at most 1+r.Config.Retries times.
func (r *Runner) retry(ctx context.Context, name string, f func(ctx context.Context) error) error {
	wait := r.Sleep
	if wait == nil {
		wait = sleep
	}
	attempts := r.Config.Retries + 1
	var err error
	for attempt := 1; ; attempt++ {
		if err = f(ctx); err == nil {
			return nil
		}
		if attempt >= attempts {
			break
		}
		logging.Warningf(ctx, "%s failed (attempt %d of %d), retrying in %s: %s",
			name, attempt, attempts, r.Config.Delay(), err.Error())
		if werr := wait(ctx, r.Config.Delay()); werr != nil {
			return errors.Annotate(err, "%s failed, retry cancelled (%s)", name, werr.Error())
		}
	}
	return errors.Annotate(err, "%s failed after %d attempts", name, attempts)
}

func (r *Runner) saveManifest(ctx context.Context, m *chunk.Manifest) error {
	path := ManifestPath(r.Config.StorageRoot, m.Step)
	if err := chunk.WriteManifest(path, m); err != nil {
		return errors.Annotate(err, "failed to save %s manifest", m.Step)
	}
	logging.Infof(ctx, "run %s: %s saved %d rows in %d chunks to %s",
		m.RunID, m.Step, chunk.TotalRows(m.Artifacts), len(m.Artifacts), path)
	logging.Debugf(ctx, "run %s: %s chunks: %s",
		m.RunID, m.Step, strings.Join(chunk.Locations(m.Artifacts), ", "))
	return nil
}

// Extract pulls the range into raw artifacts and saves the extract manifest.
func (r *Runner) Extract(ctx context.Context, rng chunk.DateRange) (*chunk.Manifest, error) {
	if r.Source == nil {
		return nil, errors.Reason("no source configured")
	}
	m := &chunk.Manifest{
		RunID: uuid.NewString(),
		Step:  chunk.StepExtract,
		Start: rng.Start.Format(chunk.DateLayout),
		End:   rng.End.Format(chunk.DateLayout),
	}
	logging.Infof(ctx, "run %s: extracting %s", m.RunID, rng)
	e := extract.Extractor{
		Source:   r.Source,
		PageSize: r.Config.Source.PageSize,
		Observer: r.Observer,
	}
	err := r.retry(ctx, "extract", func(ctx context.Context) error {
		arts, err := e.Extract(ctx, rng, RawDir(r.Config.StorageRoot))
		m.Artifacts = arts
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.saveManifest(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Transform cleans the artifacts listed in the extract manifest and saves the
// transform manifest.
func (r *Runner) Transform(ctx context.Context) (*chunk.Manifest, error) {
	in, err := chunk.ReadManifest(ManifestPath(r.Config.StorageRoot, chunk.StepExtract))
	if err != nil {
		return nil, errors.Annotate(err, "failed to read extract manifest")
	}
	m := &chunk.Manifest{
		RunID: in.RunID,
		Step:  chunk.StepTransform,
		Start: in.Start,
		End:   in.End,
	}
	logging.Infof(ctx, "run %s: transforming %d chunks", m.RunID, len(in.Artifacts))
	t := transform.Transformer{
		Dest:     CleanDir(r.Config.StorageRoot),
		Workers:  r.Config.TransformWorkers,
		Observer: r.Observer,
	}
	err = r.retry(ctx, "transform", func(ctx context.Context) error {
		arts, err := t.Transform(ctx, in.Artifacts)
		m.Artifacts = arts
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.saveManifest(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load copies the artifacts listed in the transform manifest into the
// destination table, and returns the number of rows loaded.
func (r *Runner) Load(ctx context.Context) (int, error) {
	if r.Store == nil {
		return 0, errors.Reason("no store configured")
	}
	in, err := chunk.ReadManifest(ManifestPath(r.Config.StorageRoot, chunk.StepTransform))
	if err != nil {
		return 0, errors.Annotate(err, "failed to read transform manifest")
	}
	logging.Infof(ctx, "run %s: loading %d chunks into %s",
		in.RunID, len(in.Artifacts), r.Config.Database.Table)
	l := load.Loader{Store: r.Store, Schema: r.Schema, Observer: r.Observer}
	total := 0
	err = r.retry(ctx, "load", func(ctx context.Context) error {
		var err error
		total, err = l.Load(ctx, in.Artifacts, r.Config.Database.Table)
		return err
	})
	if err != nil {
		return 0, err
	}
	if expected := chunk.TotalRows(in.Artifacts); total != expected {
		logging.Warningf(ctx, "run %s: loaded %d rows, the manifest lists %d",
			in.RunID, total, expected)
	}
	return total, nil
}

// Run executes all the stages in order, and returns the number of rows loaded.
func (r *Runner) Run(ctx context.Context, rng chunk.DateRange) (int, error) {
	if _, err := r.Extract(ctx, rng); err != nil {
		return 0, errors.Annotate(err, "extract stage")
	}
	if _, err := r.Transform(ctx); err != nil {
		return 0, errors.Annotate(err, "transform stage")
	}
	total, err := r.Load(ctx)
	if err != nil {
		return 0, errors.Annotate(err, "load stage")
	}
	return total, nil
}
