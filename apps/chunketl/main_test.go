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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/pipeline"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_chunketl_app")
	defer os.RemoveAll(tmpdir)
	noEnv := func(string) string { return "" }

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("all flags", func() {
			flags, err := parseFlags([]string{
				"-config", "etl.toml", "-stage", "extract",
				"-start", "2020-01-01", "-end", "2020-01-02",
				"-log-level", "warning"})
			So(err, ShouldBeNil)
			So(flags.Config, ShouldEqual, "etl.toml")
			So(flags.Stage, ShouldEqual, stageExtract)
			So(flags.Start, ShouldEqual, "2020-01-01")
			So(flags.End, ShouldEqual, "2020-01-02")
			So(flags.LogLevel, ShouldEqual, logging.Warning)
		})

		Convey("defaults", func() {
			flags, err := parseFlags([]string{"-config", "etl.toml", "-stage", "load"})
			So(err, ShouldBeNil)
			So(flags.LogLevel, ShouldEqual, logging.Info)
			flags, err = parseFlags([]string{
				"-config", "c", "-start", "2020-01-01", "-end", "2020-01-01"})
			So(err, ShouldBeNil)
			So(flags.Stage, ShouldEqual, stageAll)
		})

		Convey("missing config", func() {
			_, err := parseFlags([]string{"-stage", "load"})
			So(err, ShouldNotBeNil)
		})

		Convey("range required for extract and all", func() {
			_, err := parseFlags([]string{"-config", "c", "-stage", "extract"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-config", "c", "-start", "2020-01-01"})
			So(err, ShouldNotBeNil)
		})

		Convey("unknown stage", func() {
			_, err := parseFlags([]string{"-config", "c", "-stage", "clean"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("run extract and transform as separate stages", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{
			"invoice_line_no,date,sale_dollars\nA,2020-01-01T00:00:00.000,1.5\nB,2020-01-02T00:00:00.000,N/A\n",
			"invoice_line_no,date,sale_dollars\nC,not-a-date,3\n",
			"invoice_line_no,date,sale_dollars\n",
		}
		root := filepath.Join(tmpdir, "stages")
		confFile := filepath.Join(tmpdir, "etl.toml")
		So(testutil.WriteFile(confFile, fmt.Sprintf(`
storage_root = %q
retries = 0

[source]
url = %q

[database]
host = "localhost"
name = "etl"
user = "etl"
schema_file = "unused.sql"
`, root, server.URL()+"/resource/m3tr-qhgy.csv")), ShouldBeNil)

		env := map[string]string{"CHUNK_ROWS": "2"}
		getenv := func(k string) string { return env[k] }
		ctx := fetch.UseClient(context.Background(), server.Client())
		So(run(ctx, []string{"-config", confFile, "-stage", "extract",
			"-start", "2020-01-01", "-end", "2020-01-02", "-log-level", "error"}, getenv), ShouldBeNil)

		raw, err := chunk.ReadManifest(pipeline.ManifestPath(root, chunk.StepExtract))
		So(err, ShouldBeNil)
		So(raw.Start, ShouldEqual, "2020-01-01")
		So(chunk.TotalRows(raw.Artifacts), ShouldEqual, 3)
		So(len(raw.Artifacts), ShouldEqual, 2)

		So(run(ctx, []string{"-config", confFile, "-stage", "transform",
			"-log-level", "error"}, getenv), ShouldBeNil)

		clean, err := chunk.ReadManifest(pipeline.ManifestPath(root, chunk.StepTransform))
		So(err, ShouldBeNil)
		So(clean.RunID, ShouldEqual, raw.RunID)
		So(len(clean.Artifacts), ShouldEqual, 2)

		c, err := chunk.ReadChunk(clean.Artifacts[1].Location)
		So(err, ShouldBeNil)
		So(c.Stage, ShouldEqual, chunk.Cleaned)
		So(c.Rows[0].InvoiceLineNo, ShouldEqual, "C")
		So(c.Rows[0].Date.Valid, ShouldBeFalse)
		So(c.Rows[0].SaleDollars, ShouldEqual, 3.0)
	})

	Convey("run fails on a bad config", t, func() {
		confFile := filepath.Join(tmpdir, "bad.toml")
		So(testutil.WriteFile(confFile, "[source]\n"), ShouldBeNil)
		err := run(context.Background(), []string{"-config", confFile, "-stage", "load"}, noEnv)
		So(err, ShouldNotBeNil)
	})

	Convey("load stage fails without a schema file", t, func() {
		confFile := filepath.Join(tmpdir, "noschema.toml")
		So(testutil.WriteFile(confFile, fmt.Sprintf(`
storage_root = %q
[source]
url = "http://localhost/x.csv"
[database]
host = "localhost"
name = "etl"
user = "etl"
schema_file = %q
`, filepath.Join(tmpdir, "none"), filepath.Join(tmpdir, "missing.sql"))), ShouldBeNil)
		err := run(context.Background(), []string{"-config", confFile, "-stage", "load"}, noEnv)
		So(err, ShouldNotBeNil)
	})
}
