package cmd

import (
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Fetch and store every discovered page",
		Long: `Fetches each page from the discovery inventory and writes two
artifacts per page: the structured document as JSON and a cleaned
plain-text rendition for analysis. Pages already scraped are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			pages, err := loadDiscovered(cmd.Context(), a)
			if err != nil {
				return err
			}
			report, err := scrapePhase(cmd.Context(), a, pages)
			if err != nil {
				return err
			}
			cmd.Printf("Scraped %d pages, skipped %d already present, %d failed\n",
				report.Scraped, report.Skipped, len(report.Failed))
			if !report.Complete {
				cmd.Println("Some pages failed; rerun to retry them.")
			}
			return nil
		},
	}
}
