package main

import (
	"github.com/spf13/cobra"
)

// NewStrategyCmd creates the strategy command
func NewStrategyCmd() *cobra.Command {
	opts := newRunOptions()

	cmd := &cobra.Command{
		Use:   "strategy [services...]",
		Short: "Recommend a rollout strategy for a set of services",
		Long: `Strategy runs the same analysis as analyze, then proposes how to roll the
services out: immediate, gradual batches, canary or blue-green, with a
heuristic confidence and an estimated duration.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd.Context(), opts.cfg, args, true, cmd.OutOrStdout())
		},
	}

	opts.bindRegistryFlags(cmd)
	opts.bindAnalysisFlags(cmd)
	opts.bindOutputFlags(cmd)
	return cmd
}
