package cmd

import (
	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Crawl the wiki and build the page inventory",
		Long: `Walks the wiki's link graph breadth-first from the configured base
URL, recording every reachable content page. Progress is checkpointed,
so an interrupted crawl resumes from where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := discoverPhase(cmd.Context(), a)
			if err != nil {
				return err
			}
			cmd.Printf("Discovered %d pages (%d URLs visited)\n", len(result.Pages), result.Visited)
			if result.Capped {
				cmd.Println("Page limit reached; the inventory may be incomplete.")
			}
			return nil
		},
	}
}
