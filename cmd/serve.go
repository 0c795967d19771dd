package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the control API. Harvests and verify batches run in the
// background against the server's lifetime context; the job row is the
// interface for watching and cancelling them.
func newRouter(serverCtx context.Context, env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/harvest/{source}", func(w http.ResponseWriter, req *http.Request) {
		source := model.SourceType(chi.URLParam(req, "source"))
		if !source.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source type"})
			return
		}

		// pre-check so the caller sees the conflict; the runner's own
		// CreateJob remains the authoritative single-flight guard
		running, err := env.Store.GetRunningJob(req.Context(), source)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if running != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "harvest already running for source"})
			return
		}

		go func() {
			job, err := env.Runner.Run(serverCtx, source, 1, 0)
			if err != nil {
				if eris.Is(err, store.ErrJobRunning) {
					zap.L().Warn("harvest lost single-flight race", zap.String("source", string(source)))
					return
				}
				zap.L().Error("background harvest failed",
					zap.String("source", string(source)),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("background harvest finished",
				zap.String("job_id", job.ID),
				zap.String("status", string(job.Status)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"source": string(source),
		})
	})

	r.Get("/jobs", func(w http.ResponseWriter, req *http.Request) {
		list, err := env.Store.ListJobs(req.Context(), store.JobFilter{
			SourceType: model.SourceType(req.URL.Query().Get("source")),
			Status:     model.JobStatus(req.URL.Query().Get("status")),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if job == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Post("/jobs/{id}/cancel", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := env.Store.CancelJob(req.Context(), id); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "job is not running"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
	})

	r.Post("/verify", func(w http.ResponseWriter, req *http.Request) {
		if env.Verifier == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no extraction model configured"})
			return
		}
		go func() {
			result, err := env.Verifier.Batch(serverCtx, cfg.Verify.BatchSize)
			if err != nil {
				zap.L().Error("background verify failed", zap.Error(err))
				return
			}
			zap.L().Info("background verify finished",
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed),
			)
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
