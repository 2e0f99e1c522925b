package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	publicops "github.com/born-ml/kernels/ops"
)

func parityCmd() *cobra.Command {
	var (
		rows, width int
		tol         float64
		seed        uint64
		workers     int
	)
	cmd := &cobra.Command{
		Use:   "parity",
		Short: "compare every operation against the host reference",
		Long: "Runs each operation on random inputs with the host backend and the configured\n" +
			"device backend and reports the largest relative difference. Without a device\n" +
			"the target is a sequential host backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}

			resolver, release, err := publicops.New(cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			reference := resolver.Host()
			target := resolver.Device()
			if target == nil {
				hostCfg := cfg.HostConfig(logger)
				hostCfg.Parallel = parallel.Sequential()
				target = cpu.NewWithConfig(hostCfg)
			}
			logger.Info().Str("reference", reference.Name()).Str("target", target.Name()).Msg("running parity")

			in, err := newParityInputs(reference, cfg.Seed, rows, width, cfg.MishThreshold)
			if err != nil {
				return err
			}
			results, err := runParity(cmd.Context(), reference, target, in, tol, workers)
			if err != nil {
				return err
			}
			return report(cmd, target, results)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 64, "rows of the random inputs")
	cmd.Flags().IntVar(&width, "width", 32, "columns of the random inputs (even)")
	cmd.Flags().Float64Var(&tol, "tol", 1e-4, "relative tolerance")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "input seed (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent checks (0 = unlimited)")
	return cmd
}

func report(cmd *cobra.Command, target ops.Ops, results []parityResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "OP\tMAX DIFF\tSTATUS\n")
	failed := 0
	for _, r := range results {
		status := okStyle.Render("ok")
		switch {
		case r.Err != nil:
			status = failStyle.Render("ERROR " + r.Err.Error())
			failed++
		case !r.Passed:
			status = failStyle.Render("FAIL")
			failed++
		}
		fmt.Fprintf(w, "%s\t%.3g\t%s\n", r.Name, r.MaxDiff, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("parity: %d of %d checks failed on %s", failed, len(results), target.Name())
	}
	return nil
}
