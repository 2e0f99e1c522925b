package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/kernels/backend/cpu"
	"github.com/born-ml/kernels/backend/webgpu"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "list compute devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			host := cpu.NewWithConfig(cfg.HostConfig(logger))
			fmt.Fprintf(out, "host    %s\n", host.Name())

			adapters, err := webgpu.ListAdapters()
			if err != nil {
				fmt.Fprintf(out, "webgpu  %s\n", dimStyle.Render("unavailable: "+err.Error()))
				return nil
			}
			for _, a := range adapters {
				fmt.Fprintf(out, "webgpu  %s\n", a)
			}
			return nil
		},
	}
}
