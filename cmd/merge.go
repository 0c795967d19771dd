package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Collapse duplicate parties differing only in legal suffixes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "merge")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Resolver.Merge(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("merge finished",
			zap.Int("groups_merged", result.GroupsMerged),
			zap.Int("parties_removed", result.PartiesRemoved),
			zap.Int("links_repointed", result.LinksRepointed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
