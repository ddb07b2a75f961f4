// Package orchestrator drives a build from submission to a terminal state:
// create the record, make sure the CI workflow for the framework/OS pair
// exists, dispatch it, then reconcile remote run state into the build row
// until it completes or fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"web2desk/pkg/target"
	"web2desk/pkg/telemetry"
)

var (
	// ErrValidation marks client errors on submission.
	ErrValidation = errors.New("invalid build request")
	// ErrConfig marks missing orchestration configuration, e.g. no CI
	// credential. No build row is left behind when Submit fails with it.
	ErrConfig = errors.New("orchestration not configured")
	// ErrNotFound is returned for unknown build ids.
	ErrNotFound = errors.New("build not found")
)

const updatesSubjectPrefix = "web2desk.builds.updated."

// UpdatesSubject is the bus subject build row changes are published on.
func UpdatesSubject(id uuid.UUID) string {
	return updatesSubjectPrefix + id.String()
}

// Publisher pushes build updates to subscribers. A nil Publisher disables
// push; clients fall back to polling.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Orchestrator owns the build state machine.
type Orchestrator struct {
	db    *gorm.DB
	strat Strategy
	pub   Publisher
	log   zerolog.Logger

	dispatchTimeout time.Duration
}

func New(db *gorm.DB, strat Strategy, pub Publisher, dispatchTimeout time.Duration, log zerolog.Logger) *Orchestrator {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		db:              db,
		strat:           strat,
		pub:             pub,
		log:             log.With().Str("component", "orchestrator").Logger(),
		dispatchTimeout: dispatchTimeout,
	}
}

// Submit validates the request, creates the build row and starts the
// dispatch work in the background. The returned build is the freshly
// created row; callers follow its progress via Reconcile or the update
// subject.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Build, error) {
	b, err := validate(req)
	if err != nil {
		return nil, err
	}
	if err := o.strat.Ready(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	b.ProjectConfig = projectConfig(b)
	if err := o.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, fmt.Errorf("create build: %w", err)
	}
	telemetry.BuildsCreated.WithLabelValues(b.Framework, b.TargetOS).Inc()
	o.publish(ctx, b)

	// Snapshot before kickoff starts; the goroutine mutates b.
	out := b.toAPI()

	// Workflow publication and dispatch can take tens of seconds, so the
	// caller gets the id now and the rest runs detached from the request.
	kickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.dispatchTimeout)
	go func() {
		defer cancel()
		o.kickoff(kickCtx, b)
	}()

	return &out, nil
}

func (o *Orchestrator) kickoff(ctx context.Context, b *buildModel) {
	status, err := o.strat.Kickoff(ctx, b)
	if err != nil {
		telemetry.Dispatches.WithLabelValues("error").Inc()
		o.log.Error().Err(err).Stringer("build_id", b.ID).Msg("kickoff failed")
		o.markFailed(ctx, b, err.Error())
		return
	}
	telemetry.Dispatches.WithLabelValues("ok").Inc()
	o.setStatus(ctx, b, status)
}

// Get returns the build and its recorded artifacts. Never mutates.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Build, []Artifact, error) {
	b, err := o.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	arts, err := o.artifacts(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	out := b.toAPI()
	return &out, arts, nil
}

// Reconcile maps current remote run state onto the build. Terminal builds
// are returned as-is. A transient polling failure returns an error without
// touching the row; the next poll retries.
func (o *Orchestrator) Reconcile(ctx context.Context, id uuid.UUID) (*StatusResult, error) {
	b, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if Terminal(b.Status) {
		return o.result(ctx, b, b.Status, nil)
	}

	out, err := o.strat.Poll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("poll build %s: %w", b.ID, err)
	}

	reported := out.status
	if reported == "" {
		reported = b.Status
	}
	telemetry.Reconciliations.WithLabelValues(reported).Inc()

	if out.persist && out.status != b.Status {
		switch out.status {
		case StatusCompleted:
			if err := o.markCompleted(ctx, b, out); err != nil {
				return nil, err
			}
		case StatusFailed:
			o.markFailed(ctx, b, out.errorMessage)
		default:
			o.setStatus(ctx, b, out.status, withRunID(out.runID)...)
		}
	}

	return o.result(ctx, b, reported, &out)
}

// HandleCallback processes the status report CI posts at the end of every
// run. The callback only says "completed" or "failed"; a completed report
// triggers a reconcile first so artifacts get archived, and the raw status
// is applied only when the run listing cannot confirm it yet. Repeated
// callbacks for a terminal build are no-ops.
func (o *Orchestrator) HandleCallback(ctx context.Context, id uuid.UUID, status string) (*StatusResult, error) {
	if status != StatusCompleted && status != StatusFailed {
		return nil, fmt.Errorf("%w: callback status %q", ErrValidation, status)
	}

	if res, err := o.Reconcile(ctx, id); err == nil && Terminal(res.Status) {
		return res, nil
	} else if err != nil && errors.Is(err, ErrNotFound) {
		return nil, err
	}

	b, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Terminal(b.Status) {
		if status == StatusFailed {
			o.markFailed(ctx, b, "Workflow reported failure")
		} else {
			if err := o.markCompleted(ctx, b, pollOutcome{status: StatusCompleted, persist: true}); err != nil {
				return nil, err
			}
		}
		// The guarded write may have lost against a concurrent reconcile;
		// report whatever actually landed.
		if fresh, err := o.load(ctx, id); err == nil {
			b = fresh
		}
	}
	return o.result(ctx, b, b.Status, nil)
}

func (o *Orchestrator) load(ctx context.Context, id uuid.UUID) (*buildModel, error) {
	var b buildModel
	err := o.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load build: %w", err)
	}
	return &b, nil
}

func (o *Orchestrator) artifacts(ctx context.Context, id uuid.UUID) ([]Artifact, error) {
	var rows []artifactModel
	if err := o.db.WithContext(ctx).
		Where("build_id = ?", id).
		Order("file_name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	out := make([]Artifact, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toAPI())
	}
	return out, nil
}

func (o *Orchestrator) result(ctx context.Context, b *buildModel, status string, out *pollOutcome) (*StatusResult, error) {
	res := &StatusResult{Status: status, Artifacts: []Artifact{}}
	if b.ErrorMessage != nil {
		res.ErrorMessage = *b.ErrorMessage
	}
	res.RunID = b.CIRunID
	if out != nil {
		if out.runID != nil {
			res.RunID = out.runID
		}
		res.RunURL = out.runURL
		if out.errorMessage != "" {
			res.ErrorMessage = out.errorMessage
		}
	}
	if status == StatusCompleted {
		arts, err := o.artifacts(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		res.Artifacts = arts
	}
	return res, nil
}

type statusOption func(map[string]any)

func withRunID(runID *int64) []statusOption {
	if runID == nil {
		return nil
	}
	return []statusOption{func(m map[string]any) { m["ci_run_id"] = *runID }}
}

// setStatus writes the new status and reports whether the write applied.
// Terminal rows are never overwritten and nothing is published for a write
// that lost the race.
func (o *Orchestrator) setStatus(ctx context.Context, b *buildModel, status string, opts ...statusOption) bool {
	updates := map[string]any{"status": status}
	for _, opt := range opts {
		opt(updates)
	}
	// Guard in SQL so a concurrent reconcile cannot downgrade a terminal
	// row between our read and this write.
	res := o.db.WithContext(ctx).
		Model(&buildModel{}).
		Where("id = ? AND status NOT IN ?", b.ID, []string{StatusCompleted, StatusFailed}).
		Updates(updates)
	if res.Error != nil {
		o.log.Error().Err(res.Error).Stringer("build_id", b.ID).Str("status", status).Msg("update build status")
		return false
	}
	if res.RowsAffected == 0 {
		o.log.Debug().Stringer("build_id", b.ID).Str("status", status).Msg("build already terminal, status write skipped")
		return false
	}
	b.Status = status
	o.publish(ctx, b)
	return true
}

func (o *Orchestrator) markFailed(ctx context.Context, b *buildModel, msg string) {
	if o.setStatus(ctx, b, StatusFailed, func(m map[string]any) { m["error_message"] = msg }) {
		b.ErrorMessage = &msg
	}
}

func (o *Orchestrator) markCompleted(ctx context.Context, b *buildModel, out pollOutcome) error {
	now := time.Now().UTC()
	opts := append(withRunID(out.runID), func(m map[string]any) { m["completed_at"] = now })
	for _, ph := range out.placeholders {
		row := artifactModel{
			ID:          uuid.New(),
			BuildID:     b.ID,
			FileType:    ph.fileType,
			FileName:    ph.fileName,
			FileSize:    ph.fileSize,
			StoragePath: ph.storagePath,
		}
		if ph.downloadURL != "" {
			row.DownloadURL = &ph.downloadURL
		}
		if err := o.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("record placeholder artifact: %w", err)
		}
	}
	if o.setStatus(ctx, b, StatusCompleted, opts...) {
		b.CompletedAt = &now
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, b *buildModel) {
	if o.pub == nil {
		return
	}
	if err := o.pub.Publish(ctx, UpdatesSubject(b.ID), b.toAPI()); err != nil {
		o.log.Warn().Err(err).Stringer("build_id", b.ID).Msg("publish build update")
	}
}

func validate(req SubmitRequest) (*buildModel, error) {
	appName := strings.TrimSpace(req.AppName)
	if appName == "" {
		return nil, fmt.Errorf("%w: app name is required", ErrValidation)
	}

	fw, err := target.ParseFramework(req.Framework)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	osTarget, err := target.ParseOS(req.TargetOS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !target.Supported(fw, osTarget) {
		return nil, fmt.Errorf("%w: %s does not target %s", ErrValidation, fw, osTarget)
	}
	source, err := target.ParseSource(req.SourceType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	mode, err := target.ParseMode(req.WrapperMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sourceURL := strings.TrimSpace(req.SourceURL)
	if source != target.SourceZip && sourceURL == "" {
		return nil, fmt.Errorf("%w: source url is required for %s sources", ErrValidation, source)
	}

	b := &buildModel{
		ID:          uuid.New(),
		AppName:     appName,
		Framework:   string(fw),
		TargetOS:    string(osTarget),
		SourceType:  string(source),
		WrapperMode: string(mode),
		Status:      StatusPreparing,
	}
	if sourceURL != "" {
		b.SourceURL = &sourceURL
	}
	return b, nil
}
