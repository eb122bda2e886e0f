package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/scheduler"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

func newRunCmd() *cobra.Command {
	var (
		targetsFile string
		categories  []string
		every       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the scrapers and stores the results",
		Long: `Runs every target once and prints a per-category summary. Targets
come from --targets (a YAML map of category to parameters), from the targets
section of the config, or from the built-in defaults. --category narrows the
run; --every repeats it until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			targets, err := loadTargets(targetsFile)
			if err != nil {
				return err
			}
			targets = selectCategories(targets, categories)

			out := cmd.OutOrStdout()
			runOnce := func(ctx context.Context) error {
				report, err := appInstance.Manager().Run(ctx, targets)
				if report.RunID != "" {
					printReport(out, report)
				}
				return err
			}
			if every <= 0 {
				return runOnce(cmd.Context())
			}

			sched, err := scheduler.New(scheduler.RunnerFunc(runOnce), scheduler.Config{})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return sched.RunForever(ctx, every)
		},
	}
	cmd.Flags().StringVar(&targetsFile, "targets", "", "YAML file mapping categories to parameters")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "limit the run to these categories")
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the run at this interval")
	return cmd
}

// loadTargets reads a YAML target file. An empty path returns nil so the
// manager uses its configured targets.
func loadTargets(path string) (map[string]scrape.Params, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("targets file lists no categories")
	}
	out := make(map[string]scrape.Params, len(raw))
	for name, params := range raw {
		p := scrape.Params{}
		for k, v := range params {
			p[k] = v
		}
		out[name] = p
	}
	return out, nil
}

// selectCategories keeps only the named categories. Categories without
// loaded parameters run with empty ones.
func selectCategories(targets map[string]scrape.Params, categories []string) map[string]scrape.Params {
	if len(categories) == 0 {
		return targets
	}
	out := make(map[string]scrape.Params, len(categories))
	for _, name := range categories {
		if p, ok := targets[name]; ok {
			out[name] = p
			continue
		}
		out[name] = scrape.Params{}
	}
	return out
}

func printReport(out io.Writer, report manager.Report) {
	names := make([]string, 0, len(report.Results))
	for name := range report.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(out)
	t.SetTitle("run " + report.RunID)
	t.AppendHeader(table.Row{"Category", "Records", "Error"})
	for _, name := range names {
		res := report.Results[name]
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		t.AppendRow(table.Row{name, len(res.Records), errText})
	}
	t.AppendFooter(table.Row{"Total", report.Summary.TotalItems, report.Summary.Duration.Round(time.Millisecond)})
	t.Render()
}
