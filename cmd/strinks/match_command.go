package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"strinks/internal/logging"
	"strinks/internal/matcher"
	"strinks/internal/services"
	"strinks/internal/textutil"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var forceRefresh bool
	var outputPath string
	var showResults bool

	cmd := &cobra.Command{
		Use:   "match [records.json]",
		Short: "Resolve retail listings against the catalog",
		Long: `Resolve retail listings against the catalog.

Input is a JSON array of records or one JSON record per line, read from the
named file or stdin. Each record needs a name and usually a brewery:

  {"name": "ゴーゼ", "brewery": "Example Brewery", "nativeName": "", "shop": "..."}

Results are cached; records resolved recently are answered from the cache.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			in, err := openInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			records, err := readRecords(in)
			_ = in.Close()
			if err != nil {
				return err
			}

			rt, err := ctx.newRuntime()
			if err != nil {
				return err
			}
			if workers > 0 {
				rt.cfg.Matching.Workers = workers
			}
			return runMatch(cmd, ctx, rt, records, forceRefresh, outputPath, showResults)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent workers (default matching.workers)")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Search again even when the cache holds a fresh answer")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write one JSON result per line to this file ('-' for stdout)")
	cmd.Flags().BoolVar(&showResults, "results", false, "Print a table of per-record results")
	return cmd
}

func runMatch(cmd *cobra.Command, ctx *commandContext, rt *runtime, records []matcher.Record, forceRefresh bool, outputPath string, showResults bool) (err error) {
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	runCtx := services.WithRunID(cmd.Context(), uuid.NewString())
	if err := rt.openCatalog(); err != nil {
		return err
	}
	if err := rt.openTranslator(runCtx); err != nil {
		return err
	}
	if err := rt.openCache(cacheFlushDelay); err != nil {
		return err
	}

	opts := matcher.OptionsFromConfig(rt.cfg)
	if rt.api != nil {
		opts.API = rt.api
	}
	opts.Web = rt.web
	opts.Cache = rt.cache
	opts.Translator = rt.translator
	opts.ForceRefresh = forceRefresh
	opts.Logger = rt.logger
	m, err := matcher.New(opts)
	if err != nil {
		logging.ErrorWithContext(rt.logger, "matcher setup failed", "matcher_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the [matching] and [untappd] config sections"),
		)
		return err
	}

	var sink matcher.Sink
	if path := strings.TrimSpace(outputPath); path != "" {
		jsonl, err := newJSONLSink(path, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer jsonl.Close()
		sink = jsonl
	}

	// Run only fails when the context ends; the partial summary is still reported
	summary, results, runErr := m.Run(runCtx, records, sink)

	out := cmd.OutOrStdout()
	switch {
	case ctx.JSONMode():
		if err := writeJSON(cmd, summary); err != nil {
			return err
		}
	case strings.TrimSpace(outputPath) != "-":
		colorize := shouldColorize(out)
		if showResults {
			fmt.Fprintln(out, renderResults(results, colorize))
		}
		fmt.Fprintln(out, renderSummary(summary, colorize))
	}
	if runErr != nil {
		logging.WarnWithContext(rt.logger, "match run interrupted", "match_run_interrupted",
			logging.Int("skipped", summary.Skipped),
			logging.String(logging.FieldErrorHint, "run the command again to resolve the skipped records"),
			logging.String(logging.FieldImpact, "skipped records were not searched or cached"),
		)
		return runErr
	}
	return nil
}

func renderSummary(s matcher.Summary, colorize bool) string {
	rows := [][]string{
		{colorStatus(matcher.StatusResolved, "resolved", colorize), strconv.Itoa(s.Resolved)},
		{colorStatus(matcher.StatusLowConfidence, "unmatched (low confidence)", colorize), strconv.Itoa(s.LowConfidence)},
		{colorStatus(matcher.StatusTransient, "unmatched (transient)", colorize), strconv.Itoa(s.Transient)},
		{colorStatus(matcher.StatusError, "errors", colorize), strconv.Itoa(s.Errors)},
		{colorStatus(matcher.StatusSkipped, "skipped", colorize), strconv.Itoa(s.Skipped)},
		{"cache hits", strconv.Itoa(s.CacheHits)},
		{"total", strconv.Itoa(s.Total)},
	}
	if s.SinkFailures > 0 {
		rows = append(rows, []string{"output failures", strconv.Itoa(s.SinkFailures)})
	}
	return renderTable([]string{"Outcome", "Records"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderResults(results []matcher.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		id, beer := textutil.Placeholder, textutil.Placeholder
		if res.Candidate != nil {
			id = res.Candidate.ID
			beer = res.Candidate.Name
			if res.Candidate.Brewery != "" {
				beer = res.Candidate.Brewery + " / " + beer
			}
		}
		score := textutil.Placeholder
		if res.Score > 0 {
			score = strconv.FormatFloat(res.Score, 'f', 2, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			res.Record.Name,
			colorStatus(res.Status, string(res.Status), colorize),
			id,
			beer,
			score,
			yesNo(res.Cached),
		})
	}
	return renderTable(
		[]string{"#", "Listing", "Status", "Catalog ID", "Match", "Score", "Cached"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}
