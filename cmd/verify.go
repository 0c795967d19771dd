package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyLimit int

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Enrich unprocessed cases with AI-extracted outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "verify")
		if err != nil {
			return err
		}
		defer env.Close()

		limit := verifyLimit
		if limit <= 0 {
			limit = cfg.Verify.BatchSize
		}

		result, err := env.Verifier.Batch(ctx, limit)
		if err != nil {
			return err
		}
		zap.L().Info("verify finished",
			zap.Int("selected", result.Selected),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 0, "maximum cases to process (default from config)")
	rootCmd.AddCommand(verifyCmd)
}
