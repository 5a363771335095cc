package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	var partial bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline end to end",
		Long: `Runs discovery, scraping, media extraction and analysis in order.
Each phase resumes from its checkpoint, so rerunning after an
interruption or partial failure only does the remaining work. By
default an incomplete phase stops the run; pass --partial to push on
with whatever the phase produced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			runID := uuid.NewString()
			a.Logger.Info("pipeline run starting", zap.String("run_id", runID))

			result, err := discoverPhase(ctx, a)
			publishPhase(ctx, a, runID, "discover", err == nil, false, len(result.Pages), err)
			if err != nil {
				return err
			}
			cmd.Printf("[1/5] Discovered %d pages\n", len(result.Pages))

			report, err := scrapePhase(ctx, a, result.Pages)
			publishPhase(ctx, a, runID, "scrape", err == nil && report.Complete, false, report.Scraped, err)
			if err != nil {
				return err
			}
			cmd.Printf("[2/5] Scraped %d pages (%d skipped, %d failed)\n",
				report.Scraped, report.Skipped, len(report.Failed))
			if !report.Complete && !partial {
				cmd.Println("Scrape incomplete; rerun to retry, or pass --partial to continue.")
				return nil
			}

			mediaReport, err := mediaPhase(ctx, a)
			publishPhase(ctx, a, runID, "media", err == nil && mediaReport.Complete, mediaReport.SkippedPhase, mediaReport.Pages, err)
			if err != nil {
				return err
			}
			cmd.Printf("[3/5] Media: %d images downloaded, %d videos indexed\n",
				mediaReport.DownloadedImages, mediaReport.Videos)
			if !mediaReport.Complete && !mediaReport.SkippedPhase && !partial {
				cmd.Println("Media extraction incomplete; rerun to retry, or pass --partial to continue.")
				return nil
			}

			invoker, err := newInvoker(ctx, a)
			if err != nil {
				return err
			}

			timeline, batchReport, err := timelinePhase(ctx, a, invoker)
			publishPhase(ctx, a, runID, "timeline", err == nil && batchReport.Complete, false, timeline.TotalEvents, err)
			if err != nil {
				return err
			}
			cmd.Printf("[4/5] Timeline: %d events\n", timeline.TotalEvents)
			if !batchReport.Complete && !partial {
				cmd.Printf("Batches %v failed; rerun to retry, or pass --partial to continue.\n",
					batchReport.FailedBatches)
				return nil
			}

			linked, linkSkipped, err := linkPhase(ctx, a)
			if err != nil {
				return err
			}
			summarySkipped, err := summaryPhase(ctx, a, invoker)
			publishPhase(ctx, a, runID, "summary", err == nil, summarySkipped, linked.EventsWithMedia, err)
			if err != nil {
				return err
			}
			if linkSkipped {
				cmd.Println("[5/5] Summary done (no media index to link)")
			} else {
				cmd.Printf("[5/5] Summary done, media linked onto %d events\n", linked.EventsWithMedia)
			}

			a.Logger.Info("pipeline run finished", zap.String("run_id", runID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&partial, "partial", false, "continue past incomplete phases")
	return cmd
}
