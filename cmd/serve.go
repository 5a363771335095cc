package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chronicleworks/wikichron/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve artifacts, status and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			srv := server.New(a.Blobs, a.Logger)
			return srv.Run(cmd.Context(), a.Config.Server.Port)
		},
	}
}
