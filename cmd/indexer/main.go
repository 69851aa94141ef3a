// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is a one-shot command line indexer.
//
// Usage:
//
//	indexer -folder <shared Drive folder link> [-query <text>] [-top-k 5] [-pretty]
//
// With -folder, every video of the folder is processed and the run summary
// is printed to stdout as JSON. With -query, the index is searched after the
// run, or on its own when -folder is omitted. Logs go to stderr.
//
// Exit codes: 0 when the run completed (individual items may have failed, see
// the summary), 1 when the folder could not be listed or setup failed, 2 on
// usage errors, 130 when interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

type options struct {
	folder string
	query  string
	topK   int
	pretty bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	fs.StringVar(&opts.folder, "folder", "", "shared Google Drive folder link to index")
	fs.StringVar(&opts.query, "query", "", "text to search the index for")
	fs.IntVar(&opts.topK, "top-k", 5, "number of matches returned by -query")
	fs.BoolVar(&opts.pretty, "pretty", false, "human readable logs on stderr")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.folder == "" && opts.query == "" {
		fs.Usage()
		return opts, errors.New("one of -folder or -query is required")
	}
	if opts.topK < 1 {
		return opts, fmt.Errorf("-top-k must be >= 1, got %d", opts.topK)
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := InitState(ctx, opts.pretty)
	if err != nil {
		slog.Error("setup failed", "error", err)
		return exitFailure
	}
	defer state.Close(context.Background())

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	if opts.folder != "" {
		summary, err := state.ingestion.Run(ctx, opts.folder)
		if summary != nil {
			if encErr := out.Encode(summary); encErr != nil {
				slog.Error("failed to write summary", "error", encErr)
			}
		}
		switch {
		case errors.Is(err, context.Canceled):
			slog.Warn("run interrupted")
			return exitInterrupted
		case err != nil:
			slog.Error("run failed", "folder", opts.folder, "kind", string(model.KindOf(err)), "error", err)
			return exitFailure
		}
		slog.Info("run finished",
			"run_id", summary.RunID,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"partially_stored", summary.PartiallyStored)
	}

	if opts.query != "" {
		if state.deps.Searcher == nil {
			slog.Error("search is not available")
			return exitFailure
		}
		matches, err := state.deps.Searcher.FindSimilar(ctx, opts.query, opts.topK)
		if err != nil {
			slog.Error("query failed", "query", opts.query, "error", err)
			return exitFailure
		}
		if err := out.Encode(matches); err != nil {
			slog.Error("failed to write matches", "error", err)
			return exitFailure
		}
	}
	return exitOK
}
