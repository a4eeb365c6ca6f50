// Copyright 2024 The jflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli implements the jflow command-line surface (§6 "CLI
// surface"): a single command taking -a/--analysisConf, -l/--dbLocation,
// -s/--start, -o/--output and -c/--classpath. There is no two-letter -cp
// shorthand; --classpath is the long form of -c.
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/report"
	"github.com/jflow-dev/jflow/internal/pkg/ruleconfig"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"github.com/jflow-dev/jflow/internal/pkg/taint"
)

var opts struct {
	analysisConf string
	dbLocation   string
	start        string
	output       string
	classpath    string
}

var rootCmd = &cobra.Command{
	Use:   "jflow",
	Short: "Interprocedural dataflow analysis over Go source (taint, nullness, unused-variable)",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.analysisConf, "analysisConf", "a", "", "path to a YAML/JSON analysis configuration, merged over the bundled default (required)")
	flags.StringVarP(&opts.dbLocation, "dbLocation", "l", "", "path to a persistent state directory (unset: in-memory only)")
	flags.StringVarP(&opts.start, "start", "s", "", "semicolon-separated function-name prefixes to seed the analysis from (required)")
	flags.StringVarP(&opts.output, "output", "o", "report.json", "path to the report file; .sarif extension emits SARIF 2.1.0")
	// pflag shorthands are a single ASCII character, so "-cp" (as written in
	// the two-letter form) isn't representable; --classpath is the primary
	// spelling and "-c" is the closest single-character shorthand.
	flags.StringVarP(&opts.classpath, "classpath", "c", "./...", "package patterns to load, analogous to a JVM class-path")
	_ = rootCmd.MarkFlagRequired("analysisConf")
	_ = rootCmd.MarkFlagRequired("start")
}

// Execute runs the root command; cmd/jflow's main delegates to this.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, _ []string) error {
	if opts.dbLocation != "" {
		fmt.Fprintf(os.Stderr, "jflow: --dbLocation %q ignored: persistence is not implemented, running in-memory\n", opts.dbLocation)
	}

	cfg, err := loadConfig(opts.analysisConf)
	if err != nil {
		doc := report.BuildAborted(err)
		if werr := writeReport(opts.output, doc); werr != nil {
			return fmt.Errorf("jflow: %w", werr)
		}
		printSummary(doc)
		return err
	}

	prefixes := strings.Split(opts.start, ";")
	patterns := strings.Split(opts.classpath, string(os.PathListSeparator))

	prog, _, err := loadProgram(patterns)
	if err != nil {
		return fmt.Errorf("jflow: %w", err)
	}
	starts := startMethods(prog, prefixes)
	if len(starts) == 0 {
		return fmt.Errorf("jflow: no function matched any --start prefix %q", opts.start)
	}

	graph := ssagraph.New()
	store := ifds.NewSummaryStore(ifds.DefaultReplayCap)
	analyzer := taint.New(cfg)
	manager := ifds.NewManager(graph, ifds.PerPackageResolver(), store, ifds.DefaultDeadline, ifds.NewSimpleRunnerFactory(analyzer))

	res := manager.Run(context.Background(), starts)
	sort.Slice(res.Vulnerabilities, func(i, j int) bool {
		return res.Vulnerabilities[i].SortKey() < res.Vulnerabilities[j].SortKey()
	})
	doc := report.Build(res, func(v ifds.Vulnerability) *ifds.TraceGraph {
		var edgesEndingAtSink []ifds.Edge
		for _, e := range manager.AllPathEdges() {
			if e.To == v.Sink {
				edgesEndingAtSink = append(edgesEndingAtSink, e)
			}
		}
		return ifds.Reconstruct(v.Sink, edgesEndingAtSink, manager.ReasonsOf())
	})

	if err := writeReport(opts.output, doc); err != nil {
		return fmt.Errorf("jflow: %w", err)
	}

	printSummary(doc)
	if len(doc.Findings) > 0 {
		os.Exit(1)
	}
	return nil
}

func loadConfig(path string) (*ruleconfig.Config, error) {
	base, err := ruleconfig.Default()
	if err != nil {
		return nil, ifds.NewError(ifds.ErrConfiguration, "load default config", err)
	}
	extra, err := ruleconfig.Load(path)
	if err != nil {
		return nil, ifds.NewError(ifds.ErrConfiguration, "load "+path, err)
	}
	return ruleconfig.Merge(base, extra), nil
}

func writeReport(path string, doc report.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".sarif") {
		return report.WriteSARIF(f, doc)
	}
	return report.WriteJSON(f, doc)
}

func printSummary(doc report.Document) {
	statusColor := color.New(color.FgGreen)
	if doc.Status != report.StatusComplete {
		statusColor = color.New(color.FgYellow)
	}
	statusColor.Fprintf(os.Stderr, "jflow: run %s, %d finding(s)\n", doc.Status, len(doc.Findings))

	red := color.New(color.FgRed).SprintFunc()
	for _, f := range doc.Findings {
		fmt.Fprintf(os.Stderr, "  %s %s: %s -> %s\n", red(f.Rule), f.CWE, f.Method, f.Sink)
	}
}
