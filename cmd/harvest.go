package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

var (
	harvestStartPage int
	harvestEndPage   int
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <disputes|enforcement>",
	Short: "Harvest a tribunal listing into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := model.SourceType(args[0])
		if !source.Valid() {
			return eris.Errorf("unknown source type %q", args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Runner.Run(ctx, source, harvestStartPage, harvestEndPage)
		if err != nil {
			if eris.Is(err, store.ErrJobRunning) {
				return eris.Errorf("a %s harvest is already running", source)
			}
			return err
		}

		zap.L().Info("harvest finished",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)),
			zap.Int("seen", job.RecordsSeen),
			zap.Int("created", job.RecordsCreated),
			zap.Int("updated", job.RecordsUpdated),
		)
		return nil
	},
}

func init() {
	harvestCmd.Flags().IntVar(&harvestStartPage, "start", 1, "first listing page to harvest")
	harvestCmd.Flags().IntVar(&harvestEndPage, "end", 0, "last listing page to harvest (0 = all)")
	rootCmd.AddCommand(harvestCmd)
}
