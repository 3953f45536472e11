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

// Command chunketl moves a date range of a Socrata dataset into a PostgreSQL
// table in bounded chunks:
//
//	chunketl -config etl.toml -start 2020-01-01 -end 2025-06-30
//	chunketl -config etl.toml -stage load
//
// With -stage, a single stage runs and picks up the manifest of the previous
// stage from the storage root, so that an external scheduler can run and retry
// the stages separately.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/chunketl/config"
	"github.com/stockparfait/chunketl/load"
	"github.com/stockparfait/chunketl/pipeline"
	"github.com/stockparfait/chunketl/socrata"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Values of the -stage flag.
const (
	stageAll       = "all"
	stageExtract   = "extract"
	stageTransform = "transform"
	stageLoad      = "load"
)

type Flags struct {
	Config   string // required
	Stage    string // default: all
	Start    string // YYYY-MM-DD; required for extract
	End      string // YYYY-MM-DD; required for extract
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("chunketl", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "config file, .toml or .yaml (required)")
	fs.StringVar(&flags.Stage, "stage", stageAll, "stage to run: all, extract, transform, load")
	fs.StringVar(&flags.Start, "start", "", "first day of the range, YYYY-MM-DD")
	fs.StringVar(&flags.End, "end", "", "last day of the range, YYYY-MM-DD")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -config argument")
	}
	switch flags.Stage {
	case stageAll, stageExtract:
		if flags.Start == "" || flags.End == "" {
			return nil, errors.Reason("-start and -end are required for stage %s", flags.Stage)
		}
	case stageTransform, stageLoad:
	default:
		return nil, errors.Reason("unknown -stage %s", flags.Stage)
	}
	return &flags, nil
}

// openStore connects to the destination and reads its schema.
func openStore(ctx context.Context, c *config.Config, r *pipeline.Runner) (func(), error) {
	schema, err := c.Database.ReadSchema()
	if err != nil {
		return nil, err
	}
	pg, err := load.OpenPostgres(ctx, c.Database.DSN())
	if err != nil {
		return nil, errors.Annotate(err, "failed to open destination database")
	}
	r.Store = pg
	r.Schema = schema
	return func() { pg.Close() }, nil
}

// run the command with the environment looked up by getenv.
func run(ctx context.Context, args []string, getenv func(string) string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return errors.Annotate(err, "failed to parse flags")
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	c, err := config.LoadEnv(flags.Config, getenv)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	ctx = socrata.UseClient(ctx, c.Source.AppToken)

	r := &pipeline.Runner{
		Config: c,
		Source: &socrata.Dataset{
			Endpoint:   c.Source.URL,
			DateColumn: c.Source.DateColumn,
			OrderBy:    c.Source.OrderBy,
		},
		Observer: chunk.LogObserver{},
	}
	var rng chunk.DateRange
	if flags.Start != "" || flags.End != "" {
		if rng, err = chunk.NewDateRange(flags.Start, flags.End); err != nil {
			return errors.Annotate(err, "invalid range")
		}
	}

	switch flags.Stage {
	case stageExtract:
		_, err = r.Extract(ctx, rng)
		return err
	case stageTransform:
		_, err = r.Transform(ctx)
		return err
	}
	closeStore, err := openStore(ctx, c, r)
	if err != nil {
		return err
	}
	defer closeStore()

	var total int
	if flags.Stage == stageLoad {
		total, err = r.Load(ctx)
	} else {
		total, err = r.Run(ctx, rng)
	}
	if err != nil {
		return err
	}
	logging.Infof(ctx, "done: %d rows in %s", total, c.Database.Table)
	return nil
}

// main is not tested, keep it short.
func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Getenv); err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
