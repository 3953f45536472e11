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

// Command chunk-list prints the artifacts of a pipeline stage, or the rows of
// one chunk artifact, from the storage root of a run.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strconv"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/config"
	"github.com/stockparfait/chunketl/pipeline"
	"github.com/stockparfait/chunketl/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

type Flags struct {
	Root     string // default: config.DefaultStorageRoot
	LogLevel logging.Level
	// Exactly one of Step or Chunk must be present.
	Step  string // print the manifest of this step: extract or transform
	Chunk string // print the rows of this artifact file
	Rows  int    // max. rows to print; 0 = all
	Width int    // max. column width in text mode; 0 = unlimited
	CSV   bool   // dump CSV format; default: text.
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("chunk-list", flag.ExitOnError)
	fs.StringVar(&flags.Root, "root", config.DefaultStorageRoot, "storage root of the run")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Step, "manifest", "", "print artifacts of the step: extract, transform")
	fs.StringVar(&flags.Chunk, "chunk", "", "print rows of the chunk file")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print, 0 = all")
	fs.IntVar(&flags.Width, "width", 0, "max. column width in text mode, 0 = unlimited")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if (flags.Step == "") == (flags.Chunk == "") {
		return nil, errors.Reason("expected exactly one of -manifest or -chunk")
	}
	switch chunk.Step(flags.Step) {
	case "", chunk.StepExtract, chunk.StepTransform:
	default:
		return nil, errors.Reason("no manifest for step %s", flags.Step)
	}
	return &flags, nil
}

func manifestTable(root string, step chunk.Step) (*table.Table, error) {
	m, err := chunk.ReadManifest(pipeline.ManifestPath(root, step))
	if err != nil {
		return nil, errors.Annotate(err, "failed to read manifest")
	}
	tbl := table.NewTable("Sequence", "Stage", "Rows", "Location")
	for _, a := range m.Artifacts {
		tbl.Add([]string{
			strconv.Itoa(a.Sequence), string(a.Stage), strconv.Itoa(a.Rows), a.Location})
	}
	return tbl, nil
}

func chunkTable(location string) (*table.Table, error) {
	c, err := chunk.ReadChunk(location)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read chunk")
	}
	if c.Stage == chunk.Raw {
		tbl := table.NewTable(c.Header...)
		tbl.Add(c.Records...)
		return tbl, nil
	}
	tbl := table.NewTable(chunk.ColumnNames()...)
	for _, r := range c.Rows {
		tbl.Add(r.Record())
	}
	return tbl, nil
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	var tbl *table.Table
	var err error
	if flags.Step != "" {
		if tbl, err = manifestTable(flags.Root, chunk.Step(flags.Step)); err != nil {
			return errors.Annotate(err, "failed to list %s artifacts", flags.Step)
		}
	} else {
		if tbl, err = chunkTable(flags.Chunk); err != nil {
			return errors.Annotate(err, "failed to list rows of %s", flags.Chunk)
		}
	}
	logging.Debugf(ctx, "printing %d rows", len(tbl.Rows))
	p := table.Params{Rows: flags.Rows, MaxColWidth: flags.Width}
	if flags.CSV {
		if err := tbl.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
