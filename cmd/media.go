package cmd

import (
	"github.com/spf13/cobra"
)

func newMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "media",
		Short: "Extract and download media from scraped pages",
		Long: `Re-reads every scraped document, extracts its images and embedded
videos, downloads the images under a size cap, and writes the media
index. The phase checkpoints per page and skips work already done.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := mediaPhase(cmd.Context(), a)
			if err != nil {
				return err
			}
			if report.SkippedPhase {
				cmd.Println("Media index already complete; nothing to do.")
				return nil
			}
			cmd.Printf("Indexed %d pages: %d images downloaded, %d skipped, %d videos\n",
				report.Pages, report.DownloadedImages, report.SkippedImages, report.Videos)
			if !report.Complete {
				cmd.Println("Some pages failed; rerun to retry them.")
			}
			return nil
		},
	}
}
