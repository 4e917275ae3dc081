package main

import (
	"github.com/spf13/cobra"

	"hlscache/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve playlists and segments, running maintenance in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
				Bind:        bind,
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	cmd.Flags().BoolVar(&development, "dev", false, "Attach source locations to log records")
	return cmd
}
