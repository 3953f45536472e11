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
	"context"

	"github.com/stockparfait/logging"
)

// Step of the pipeline reporting progress.
type Step string

// Values of Step.
const (
	StepExtract   = Step("extract")
	StepTransform = Step("transform")
	StepLoad      = Step("load")
)

// Progress is reported once per chunk, after the chunk is fully processed.
type Progress struct {
	Step       Step
	Artifact   Artifact // the artifact produced (extract, transform) or consumed (load)
	Index      int      // 1-based count of chunks done so far
	Total      int      // number of chunks in the step, 0 if not known upfront
	Cumulative int      // rows processed so far in the step
}

// Observer receives progress at chunk boundaries. Stages never depend on what
// the observer does.
type Observer interface {
	Observe(ctx context.Context, p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, p Progress)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, p Progress) { f(ctx, p) }

// Notify reports p to o, if o is not nil.
func Notify(ctx context.Context, o Observer, p Progress) {
	if o != nil {
		o.Observe(ctx, p)
	}
}

// LogObserver logs progress with the logger from the context.
type LogObserver struct{}

var _ Observer = LogObserver{}

// Observe implements Observer.
func (LogObserver) Observe(ctx context.Context, p Progress) {
	if p.Total > 0 {
		logging.Infof(ctx, "%s %d/%d: +%d rows (cum %d) %s",
			p.Step, p.Index, p.Total, p.Artifact.Rows, p.Cumulative, p.Artifact.Location)
		return
	}
	logging.Infof(ctx, "%s %d: +%d rows (cum %d) %s",
		p.Step, p.Index, p.Artifact.Rows, p.Cumulative, p.Artifact.Location)
}
