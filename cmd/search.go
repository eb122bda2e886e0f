package cmd

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/multisource-scraper/internal/normalize"
)

func newSearchCmd() *cobra.Command {
	var (
		location string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Searches every job board and prints ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if limit < 0 {
				return errors.New("limit must be >= 0")
			}
			records, err := appInstance.Manager().SearchJobs(cmd.Context(), strings.Join(args, " "), location)
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Score", "Title", "Company", "Location", "Source"})
			for _, rec := range records {
				score, _ := rec.Get(normalize.FieldRelevance)
				t.AppendRow(table.Row{
					score,
					rec.String("title"),
					rec.String("company"),
					rec.String("location"),
					rec.Source(),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "job location (defaults to South Africa)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print, 0 for all")
	return cmd
}
