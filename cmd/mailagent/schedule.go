package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsAddrFlag string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run both pipelines on their cron schedules until interrupted",
	Long: `Run ingestion and the alert digest on the schedules configured under
ingest.schedule and alerts.schedule. Specs have six fields, seconds first.
A run is skipped while the previous run of the same pipeline is active.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	s, err := a.NewScheduler()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if metricsAddrFlag != "" {
		srv := &http.Server{
			Addr:              metricsAddrFlag,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		a.Logger.Info("serving metrics", zap.String("addr", metricsAddrFlag))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return s.Run(ctx)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
