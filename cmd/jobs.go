package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

var (
	jobsSource string
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect harvest jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Store.ListJobs(cmd.Context(), store.JobFilter{
			SourceType: model.SourceType(jobsSource),
			Status:     model.JobStatus(jobsStatus),
			Limit:      jobsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tPAGE\tSEEN\tCREATED\tUPDATED\tSTARTED")
		for _, j := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\n",
				j.ID, j.SourceType, j.Status,
				j.CurrentPage, j.TotalPages,
				j.RecordsSeen, j.RecordsCreated, j.RecordsUpdated,
				j.StartedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		fmt.Printf("Job:      %s\n", job.ID)
		fmt.Printf("Source:   %s\n", job.SourceType)
		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Progress: page %d of %d\n", job.CurrentPage, job.TotalPages)
		fmt.Printf("Records:  %d seen, %d created, %d updated\n",
			job.RecordsSeen, job.RecordsCreated, job.RecordsUpdated)
		if job.Error != "" {
			fmt.Printf("Error:    %s\n", job.Error)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.CancelJob(cmd.Context(), args[0]); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("job %s is not running", args[0])
			}
			return err
		}
		// the runner notices at its next per-page status check
		zap.L().Info("job cancellation requested", zap.String("job_id", args[0]))
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsSource, "source", "", "filter by source type")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}
