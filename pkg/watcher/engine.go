// Package watcher contains the verification engine that drives a task to its
// verdict, and the HTTP handlers of the task API.
package watcher

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/argowatch/pkg/argocd"
	"github.com/wisbric/argowatch/pkg/task"
)

// pollInterval is the fixed pause between controller polls.
const pollInterval = 5 * time.Second

// ArgoClient is the controller surface the engine polls. Satisfied by
// *argocd.Client.
type ArgoClient interface {
	Refresh(ctx context.Context, app string) (int, error)
	GetAppStatus(ctx context.Context, app string) (*argocd.AppStatus, error)
}

// Notifier receives terminal verdicts. Satisfied by *notifier.SlackNotifier.
type Notifier interface {
	NotifyVerdict(ctx context.Context, t task.Task) error
}

// Engine drives one task from "in progress" to a terminal status by polling
// Argo CD with a deadline. One Run call per accepted task; runs concurrently
// with any number of other verifications.
type Engine struct {
	store     task.Store
	argo      ArgoClient
	logger    *slog.Logger
	timeout   time.Duration
	interval  time.Duration
	failed    *prometheus.GaugeVec   // failed_deployment{app_name}
	processed *prometheus.CounterVec // processed_deployments_total{status}
	notifier  Notifier
}

// NewEngine creates a verification engine. notifier may be nil.
func NewEngine(store task.Store, argo ArgoClient, logger *slog.Logger, timeout time.Duration,
	failed *prometheus.GaugeVec, processed *prometheus.CounterVec, notifier Notifier) *Engine {
	return &Engine{
		store:     store,
		argo:      argo,
		logger:    logger,
		timeout:   timeout,
		interval:  pollInterval,
		failed:    failed,
		processed: processed,
		notifier:  notifier,
	}
}

// Run polls Argo CD until the task's images are rolled out and the app is
// Synced and Healthy, the app turns out to be unknown, or the deadline
// expires. The deadline is checked between polls, so a run can outlast the
// engine timeout by up to one pause and one poll. Cancelling ctx stops the
// loop without writing a verdict, leaving the task "in progress". Run blocks
// and is meant to be called on a background goroutine.
func (e *Engine) Run(ctx context.Context, t task.Task) {
	deadline := time.Now().Add(e.timeout)

	e.logger.Info("verification started",
		"task_id", t.ID,
		"app", t.App,
		"timeout", e.timeout,
	)

	for time.Now().Before(deadline) {
		switch e.poll(ctx, t) {
		case task.StatusAppNotFound:
			e.finish(ctx, t, task.StatusAppNotFound)
			return
		case task.StatusDeployed:
			e.finish(ctx, t, task.StatusDeployed)
			return
		}

		select {
		case <-ctx.Done():
			e.logger.Info("verification interrupted by shutdown", "task_id", t.ID)
			return
		case <-time.After(e.interval):
		}
	}

	e.finish(ctx, t, task.StatusFailed)
}

// poll performs a single verification iteration. It returns a terminal
// status when one is reached, or StatusInProgress to keep polling. Transport
// errors keep polling; only a 404 from refresh is immediately terminal.
func (e *Engine) poll(ctx context.Context, t task.Task) string {
	code, err := e.argo.Refresh(ctx, t.App)
	if err != nil {
		e.logger.Warn("refreshing application", "task_id", t.ID, "app", t.App, "error", err)
		return task.StatusInProgress
	}
	if code == http.StatusNotFound {
		return task.StatusAppNotFound
	}

	status, err := e.argo.GetAppStatus(ctx, t.App)
	if err != nil {
		e.logger.Warn("fetching application status", "task_id", t.ID, "app", t.App, "error", err)
		return task.StatusInProgress
	}
	if status == nil {
		return task.StatusInProgress
	}

	for _, img := range t.Images {
		if !slices.Contains(status.Images, img.Ref()) {
			return task.StatusInProgress
		}
	}

	if status.Synced == "Synced" && status.Healthy == "Healthy" {
		return task.StatusDeployed
	}
	return task.StatusInProgress
}

// finish writes the verdict, updates the failure gauge and notifies.
func (e *Engine) finish(ctx context.Context, t task.Task, status string) {
	if err := e.store.UpdateTask(ctx, t.ID, status); err != nil {
		e.logger.Error("writing terminal status", "task_id", t.ID, "status", status, "error", err)
	}

	switch status {
	case task.StatusDeployed:
		e.failed.WithLabelValues(t.App).Set(0)
	case task.StatusFailed:
		e.failed.WithLabelValues(t.App).Inc()
	}
	e.processed.WithLabelValues(status).Inc()

	e.logger.Info("verification finished",
		"task_id", t.ID,
		"app", t.App,
		"status", status,
	)

	if e.notifier != nil {
		t.Status = status
		if err := e.notifier.NotifyVerdict(ctx, t); err != nil {
			e.logger.Error("notifying verdict", "task_id", t.ID, "error", err)
		}
	}
}
