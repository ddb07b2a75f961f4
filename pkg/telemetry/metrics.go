package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Build lifecycle counters exposed on /metrics.
var (
	BuildsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "web2desk_builds_created_total",
		Help: "Builds accepted for orchestration, by framework and target OS.",
	}, []string{"framework", "target_os"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "web2desk_workflow_dispatches_total",
		Help: "Workflow dispatch attempts by outcome.",
	}, []string{"outcome"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "web2desk_reconciliations_total",
		Help: "Status reconciliation calls by resulting build status.",
	}, []string{"status"})

	ArtifactsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "web2desk_artifacts_stored_total",
		Help: "Installer artifacts uploaded and recorded.",
	})

	ProjectsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "web2desk_projects_generated_total",
		Help: "Wrapper project archives generated, by framework.",
	}, []string{"framework"})
)
