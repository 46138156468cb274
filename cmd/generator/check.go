package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/valyala/fastjson"

	"segment-filter-generator/internal/config"
	"segment-filter-generator/internal/engine"
	"segment-filter-generator/internal/metrics"
	"segment-filter-generator/internal/model"
	"segment-filter-generator/internal/parser"
	"segment-filter-generator/pkg/wellknown"
)

var eventsFile string

func newCheckCmd(cfg *config.Config) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Show what the generated filter adds to sample events",
		Long: `check loads the same mappings as the generator and runs a JSON array of
sample events through them, printing one JSON line per event with the
tags and hostname/segment fields the filter would set.`,
		Args: noArgs,
		RunE: runCheck,
	}

	addInputFlags(checkCmd, cfg)
	checkCmd.Flags().StringVarP(&eventsFile, "events", "e", "", "JSON file with an array of sample events")

	return checkCmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := flagConfig()
	cfg.Output = "-"
	if err := cfg.Validate(); err != nil {
		return &usageError{err}
	}
	if eventsFile == "" {
		return &usageError{fmt.Errorf("--events is required")}
	}
	cmd.SilenceUsage = true

	slog.SetDefault(setupLogger(cfg.LogLevel, cfg.LogFile))

	events, err := readEvents(eventsFile)
	if err != nil {
		slog.Error("Failed to read events", "path", eventsFile, "error", err)
		return err
	}

	records, err := loadRecords(cmd.Context(), cfg, metrics.New())
	if err != nil {
		slog.Error("Failed to load mappings", "error", err)
		return err
	}
	idx := engine.BuildIndex(records)
	slog.Info("Checking events", "events", len(events), "groups", idx.Len())

	evaluator := engine.NewEvaluator(idx)
	bw := bufio.NewWriter(cmd.OutOrStdout())
	var arena fastjson.Arena
	for i, ev := range events {
		arena.Reset()
		res := evaluator.Evaluate(ev)
		line := checkResult(&arena, i+1, &res).MarshalTo(nil)
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("writing check results: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing check results: %w", err)
	}
	return nil
}

func readEvents(path string) ([]engine.Event, error) {
	r, err := parser.OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parser.ParseEvents(data)
}

// checkResult renders one evaluated event:
// {"event":1,"tags":[...],"source":{"hostname":[...],"segment":[...]},"destination":{...}}
// Fields the filter leaves unset are omitted.
func checkResult(a *fastjson.Arena, n int, res *engine.Result) *fastjson.Value {
	o := a.NewObject()
	o.Set("event", a.NewNumberInt(n))
	o.Set("tags", stringArray(a, res.Tags))
	for _, dir := range model.Directions {
		side := a.NewObject()
		for _, kind := range []model.FieldKind{model.Hostname, model.SegmentName} {
			vals := res.Values(model.Field{Direction: dir, Kind: kind})
			if len(vals) > 0 {
				side.Set(wellknown.KindField(kind), stringArray(a, vals))
			}
		}
		o.Set(dir.String(), side)
	}
	return o
}

func stringArray(a *fastjson.Arena, vals []string) *fastjson.Value {
	arr := a.NewArray()
	for i, v := range vals {
		arr.SetArrayItem(i, a.NewString(v))
	}
	return arr
}
