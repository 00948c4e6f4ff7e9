package main

import (
	"CoveredCall/pkg/server"

	"github.com/spf13/cobra"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the job queue workers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, cleanup, err := container()
		if err != nil {
			return err
		}
		defer cleanup()

		return server.New(c.Config, c.Logger, c.Handler, c.Queue, c.Consumer).Run(cmd.Context())
	},
}
