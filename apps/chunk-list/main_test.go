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

package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/pipeline"
	"github.com/stockparfait/logging"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_chunk_list")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		flags, err := parseFlags([]string{
			"-root", "path/to/root", "-manifest", "extract",
			"-log-level", "warning", "-rows", "3", "-width", "10", "-csv"})
		So(err, ShouldBeNil)
		So(flags.Root, ShouldEqual, "path/to/root")
		So(flags.Step, ShouldEqual, "extract")
		So(flags.LogLevel, ShouldEqual, logging.Warning)
		So(flags.Rows, ShouldEqual, 3)
		So(flags.Width, ShouldEqual, 10)
		So(flags.CSV, ShouldBeTrue)

		_, err = parseFlags([]string{"-manifest", "extract", "-chunk", "x.gob"})
		So(err, ShouldNotBeNil)
		_, err = parseFlags([]string{})
		So(err, ShouldNotBeNil)
		_, err = parseFlags([]string{"-manifest", "load"})
		So(err, ShouldNotBeNil)
	})

	Convey("printData works", t, func() {
		ctx := context.Background()
		raw, err := chunk.WriteChunk(pipeline.RawDir(tmpdir), &chunk.Chunk{
			Sequence: 0,
			Stage:    chunk.Raw,
			Header:   []string{"invoice_line_no", "sale_dollars"},
			Records:  [][]string{{"A", "1.5"}, {"B", "N/A"}},
		})
		So(err, ShouldBeNil)
		So(chunk.WriteManifest(pipeline.ManifestPath(tmpdir, chunk.StepExtract),
			&chunk.Manifest{RunID: "r", Step: chunk.StepExtract,
				Artifacts: []chunk.Artifact{raw}}), ShouldBeNil)

		Convey("manifest", func() {
			flags, err := parseFlags([]string{"-root", tmpdir, "-manifest", "extract", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
Sequence,Stage,Rows,Location
0,raw,2,`+raw.Location+`
`)
		})

		Convey("raw chunk as text", func() {
			flags, err := parseFlags([]string{"-chunk", raw.Location})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
invoice_line_no | sale_dollars
----------------+-------------
A               | 1.5
B               | N/A
`)
		})

		Convey("cleaned chunk", func() {
			r := chunk.Row{
				InvoiceLineNo: "A",
				Date:          sql.NullTime{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
				SaleDollars:   1.5,
			}
			clean, err := chunk.WriteChunk(pipeline.CleanDir(tmpdir), &chunk.Chunk{
				Sequence: 0,
				Stage:    chunk.Cleaned,
				Rows:     []chunk.Row{r},
			})
			So(err, ShouldBeNil)
			flags, err := parseFlags([]string{"-chunk", clean.Location, "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			So(len(lines), ShouldEqual, 2)
			So(lines[0], ShouldEqual, strings.Join(chunk.ColumnNames(), ","))
			So(lines[1], ShouldEqual, strings.Join(r.Record(), ","))
		})

		Convey("missing manifest", func() {
			flags, err := parseFlags([]string{"-root", tmpdir, "-manifest", "transform"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldNotBeNil)
		})
	})
}
