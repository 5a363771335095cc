package cmd

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var skipSummary bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract the timeline and summary from scraped content",
		Long: `Feeds the scraped text through the configured Bedrock model in
checkpointed batches to extract dated events, sorts them into the
canonical timeline, links each event to its source page's media, and
generates a narrative summary. Failed batches are recorded and retried
on the next run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			invoker, err := newInvoker(cmd.Context(), a)
			if err != nil {
				return err
			}

			timeline, report, err := timelinePhase(cmd.Context(), a, invoker)
			if err != nil {
				return err
			}
			cmd.Printf("Timeline: %d events from %d batches\n", timeline.TotalEvents, report.Processed)
			if !report.Complete {
				cmd.Printf("Batches %v failed; rerun to retry them.\n", report.FailedBatches)
			}

			linked, skipped, err := linkPhase(cmd.Context(), a)
			if err != nil {
				return err
			}
			if skipped {
				cmd.Println("No media index; skipped media linking.")
			} else {
				cmd.Printf("Linked media onto %d of %d events\n", linked.EventsWithMedia, linked.TotalEvents)
			}

			if skipSummary {
				return nil
			}
			summarySkipped, err := summaryPhase(cmd.Context(), a, invoker)
			if err != nil {
				return err
			}
			if summarySkipped {
				cmd.Println("Summary already exists; skipped.")
			} else {
				cmd.Println("Summary generated.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSummary, "skip-summary", false, "generate the timeline only")
	return cmd
}
