package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/thunk/internal/harness"
	"github.com/roach88/thunk/internal/journal"
	"github.com/roach88/thunk/middleware"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Database string // optional journal path
	Metrics  bool   // report dispatch metrics
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	File    string   `json:"file"`
	Name    string   `json:"name"`
	Session string   `json:"session,omitempty"`
	Pass    bool     `json:"pass"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Metrics   []MetricSample   `json:"metrics,omitempty"`
}

// MetricSample is one gathered series. Histograms are reported by sample
// count under <name>_count.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <path>",
		Short: "Run scenarios",
		Long: `Run one scenario file, or every scenario under a directory.

A scenario passes when every expect clause and assertion holds and, if
golden/<name>.golden exists next to the scenario file, its trace snapshot
matches byte for byte.

With --db, reduced actions are journaled under the scenario's session. A
scenario without a session gets a fresh UUIDv7 token on every run, so
repeated runs stay apart in the journal.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable journal, etc.)

Examples:
  thunk test ./scenarios
  thunk test ./scenarios --filter "counter_*"
  thunk test ./scenarios --update
  thunk test ./scenarios --db ./journal.db --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record reduced actions to a SQLite journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report dispatch metrics")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := findScenarioFiles(path, opts.Filter)
	if err != nil {
		return err
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return out.Result(result, false, "", "")
		}
		out.Textf("No scenarios found.")
		return nil
	}

	hopts := []harness.Option{harness.WithLogger(opts.Logger(cmd.ErrOrStderr()))}

	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		hopts = append(hopts,
			harness.WithJournal(j),
			harness.WithSessionGenerator(journal.UUIDv7Generator{}),
		)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		m, err := middleware.NewMetrics(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		hopts = append(hopts, harness.WithMetrics(m))
	}

	h := harness.New(hopts...)
	ctx := context.Background()

	for _, file := range files {
		sr := runScenario(ctx, h, file, opts, out)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if reg != nil {
		samples, err := gatherMetrics(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
		result.Metrics = samples
	}

	failed := result.Failed > 0
	message := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := out.Result(result, failed, ErrCodeTestFailed, message); err != nil {
		return err
	}

	if opts.Format != "json" {
		printMetricsText(out, result.Metrics)
		out.Textf("\nTest Summary: %d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	}
	if failed {
		return NewExitError(ExitFailure, message)
	}
	out.Textf("✓ All scenarios passed")
	return nil
}

// runScenario loads, runs and golden-checks one file.
func runScenario(ctx context.Context, h *harness.Harness, file string, opts *TestOptions, out *OutputFormatter) ScenarioResult {
	fail := func(name string, errs ...string) ScenarioResult {
		out.Textf("✗ %s", name)
		for _, e := range errs {
			out.Textf("  %s", e)
		}
		return ScenarioResult{File: file, Name: name, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("load error: %v", err))
	}

	result, err := h.Run(ctx, scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution error: %v", err))
	}

	snapshot, err := harness.Snapshot(scenario, result)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("snapshot error: %v", err))
	}

	goldenPath := goldenFilePath(file, scenario.Name)
	suffix := ""
	if opts.Update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden update error: %v", err))
		}
		suffix = " (golden updated)"
	} else {
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// Assertions only.
		case err != nil:
			return fail(scenario.Name, fmt.Sprintf("golden read error: %v", err))
		case !bytes.Equal(golden, snapshot):
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		sr := fail(scenario.Name, result.Errors...)
		sr.Session = result.Session
		return sr
	}

	out.Textf("✓ %s%s", scenario.Name, suffix)
	out.VerboseLog("  session %s, %d trace events", result.Session, len(result.Trace))
	return ScenarioResult{File: file, Name: scenario.Name, Session: result.Session, Pass: true}
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// gatherMetrics flattens the registry into samples sorted by name and
// labels.
func gatherMetrics(reg *prometheus.Registry) ([]MetricSample, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	var samples []MetricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}

			switch {
			case m.GetCounter() != nil:
				samples = append(samples, MetricSample{Name: mf.GetName(), Labels: labels, Value: m.GetCounter().GetValue()})
			case m.GetHistogram() != nil:
				samples = append(samples, MetricSample{Name: mf.GetName() + "_count", Labels: labels, Value: float64(m.GetHistogram().GetSampleCount())})
			}
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return formatLabels(samples[i].Labels) < formatLabels(samples[j].Labels)
	})
	return samples, nil
}

func printMetricsText(out *OutputFormatter, samples []MetricSample) {
	if len(samples) == 0 {
		return
	}
	out.Textf("\nMetrics:")
	for _, s := range samples {
		out.Textf("  %s{%s} %g", s.Name, formatLabels(s.Labels), s.Value)
	}
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}
