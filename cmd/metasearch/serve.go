package main

import (
	"github.com/spf13/cobra"

	"github.com/FranksOps/metasearch/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API, health check and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, root.cfg, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.pipeline, server.Options{
				Addr:   root.cfg.Server.Addr,
				Logger: root.logger,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = root.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
