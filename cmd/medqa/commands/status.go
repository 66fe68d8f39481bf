package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medkb/medqa-go/internal/logging"
)

// NewStatusCmd constructs the `medqa status` command, which reports the
// state of the vector index and recent activity.
func NewStatusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size and recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			idx, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer closeIndex()

			count, err := idx.Count(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			fmt.Printf("indexed records: %d\n", count)
			if count == 0 {
				fmt.Println("the index is empty, run 'medqa ingest' first")
			}

			history, closeHistory := openHistory(log)
			defer closeHistory()
			if history == nil {
				return nil
			}

			runs, err := history.RecentIngestRuns(ctx, recent)
			if err != nil {
				return fmt.Errorf("status: reading history: %w", err)
			}
			if len(runs) > 0 {
				fmt.Println("\nrecent ingestion runs:")
				for _, r := range runs {
					fmt.Printf("  %s  %s: accepted=%d rejected=%d failed=%d\n",
						r.CreatedAt.Format("2006-01-02 15:04"), r.Source, r.Accepted, r.Rejected, r.Failed)
				}
			}

			answers, err := history.RecentAnswers(ctx, recent)
			if err != nil {
				return fmt.Errorf("status: reading history: %w", err)
			}
			if len(answers) > 0 {
				fmt.Println("\nrecent questions:")
				for _, a := range answers {
					grounded := "grounded"
					if !a.Grounded {
						grounded = "ungrounded"
					}
					fmt.Printf("  %s  %q (%s, %d citations)\n",
						a.CreatedAt.Format("2006-01-02 15:04"), a.Question, grounded, a.Citations)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 10, "Number of recent history entries to show")

	return cmd
}
