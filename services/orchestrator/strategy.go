package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"web2desk/pkg/github"
	"web2desk/pkg/target"
	"web2desk/services/workflows"
)

// Strategy is the pluggable back half of the orchestrator: how a build
// actually gets compiled. The dispatch strategy drives a real CI system;
// the simulate strategy walks the state machine on a timer for demos and
// local development.
type Strategy interface {
	// Ready reports whether the strategy has the configuration it needs.
	// Checked before any build row is created.
	Ready() error
	// Kickoff runs the post-create steps (ensure workflow, dispatch) and
	// returns the status the build should carry afterwards.
	Kickoff(ctx context.Context, b *buildModel) (string, error)
	// Poll maps remote state onto a proposed status. persist=false means
	// report without mutating the row.
	Poll(ctx context.Context, b *buildModel) (pollOutcome, error)
}

type pollOutcome struct {
	status       string
	persist      bool
	errorMessage string
	runID        *int64
	runURL       string
	placeholders []placeholderArtifact
}

type placeholderArtifact struct {
	fileType    string
	fileName    string
	fileSize    string
	storagePath string
	downloadURL string
}

// CI is the workflow surface of the CI forge the dispatch strategy needs.
type CI interface {
	GetWorkflow(ctx context.Context, fileName string) (*github.Workflow, error)
	CreateWorkflowFile(ctx context.Context, fileName, message string, content []byte) error
	DispatchWorkflow(ctx context.Context, fileName, ref string, inputs map[string]string) error
	ListRecentRuns(ctx context.Context, perPage int) ([]github.WorkflowRun, error)
}

// ArtifactArchiver stores the installer files of a successful run.
type ArtifactArchiver interface {
	Archive(ctx context.Context, buildID uuid.UUID, appName string, runID int64) (int, error)
}

// DispatchStrategy compiles builds on a real CI system.
type DispatchStrategy struct {
	ci    CI
	arch  ArtifactArchiver
	ref   string
	grace time.Duration
	log   zerolog.Logger
}

func NewDispatchStrategy(ci CI, arch ArtifactArchiver, ref string, grace time.Duration, log zerolog.Logger) *DispatchStrategy {
	if ref == "" {
		ref = "main"
	}
	if grace <= 0 {
		grace = 20 * time.Second
	}
	return &DispatchStrategy{
		ci:    ci,
		arch:  arch,
		ref:   ref,
		grace: grace,
		log:   log.With().Str("component", "dispatch").Logger(),
	}
}

func (s *DispatchStrategy) Ready() error {
	if s.ci == nil {
		return errors.New("github credentials are not configured")
	}
	if s.arch == nil {
		return errors.New("artifact archiver is not configured")
	}
	return nil
}

func (s *DispatchStrategy) Kickoff(ctx context.Context, b *buildModel) (string, error) {
	fileName := workflows.WorkflowFileName(target.Framework(b.Framework), target.OS(b.TargetOS))

	if err := s.ensureWorkflow(ctx, b, fileName); err != nil {
		return "", err
	}

	cfg, err := json.Marshal(b.ProjectConfig)
	if err != nil {
		return "", fmt.Errorf("serialize project config: %w", err)
	}
	inputs := map[string]string{
		"app_name":       b.AppName,
		"source_url":     "",
		"source_type":    b.SourceType,
		"build_id":       b.ID.String(),
		"wrapper_mode":   b.WrapperMode,
		"project_config": string(cfg),
	}
	if b.SourceURL != nil {
		inputs["source_url"] = *b.SourceURL
	}

	if err := s.ci.DispatchWorkflow(ctx, fileName, s.ref, inputs); err != nil {
		var apiErr *github.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("Failed to start workflow: %d %s", apiErr.StatusCode, strings.TrimSpace(apiErr.Body))
		}
		return "", fmt.Errorf("Failed to start workflow: %v", err)
	}

	s.log.Info().Stringer("build_id", b.ID).Str("workflow", fileName).Msg("workflow dispatched")
	return StatusBuilding, nil
}

func (s *DispatchStrategy) ensureWorkflow(ctx context.Context, b *buildModel, fileName string) error {
	_, err := s.ci.GetWorkflow(ctx, fileName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, github.ErrNotFound) {
		return fmt.Errorf("check workflow %s: %w", fileName, err)
	}

	def, err := workflows.Synthesize(target.Framework(b.Framework), target.OS(b.TargetOS))
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Add %s build workflow", strings.TrimSuffix(fileName, ".yml"))
	if err := s.ci.CreateWorkflowFile(ctx, fileName, msg, def.Content); err != nil {
		return fmt.Errorf("Failed to create workflow: %v", err)
	}
	s.log.Info().Str("workflow", fileName).Msg("workflow published")

	// The workflows API takes a moment to index a freshly committed file;
	// dispatching before that 404s.
	backoff := retry.WithMaxDuration(s.grace, retry.NewConstant(2*time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := s.ci.GetWorkflow(ctx, fileName); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *DispatchStrategy) Poll(ctx context.Context, b *buildModel) (pollOutcome, error) {
	runs, err := s.ci.ListRecentRuns(ctx, 10)
	if err != nil {
		return pollOutcome{}, err
	}

	run := matchRun(runs, b)
	if run == nil {
		// Workflow is still starting; report building but leave the row
		// alone until a run shows up.
		return pollOutcome{status: StatusBuilding}, nil
	}

	out := pollOutcome{runID: &run.ID, runURL: run.HTMLURL}
	switch {
	case run.Completed() && run.Succeeded():
		if _, err := s.arch.Archive(ctx, b.ID, b.AppName, run.ID); err != nil {
			s.log.Error().Err(err).Stringer("build_id", b.ID).Int64("run_id", run.ID).Msg("archive run artifacts")
		}
		out.status = StatusCompleted
		out.persist = true
	case run.Completed():
		out.status = StatusFailed
		out.persist = true
		out.errorMessage = "Workflow failed: " + run.Conclusion
	case run.Status == "in_progress":
		out.status = StatusBuilding
		out.persist = true
	default:
		out.status = b.Status
	}
	return out, nil
}

// matchRun finds the run belonging to the build. Synthesized workflows
// embed the build id in the run name; when no run carries it the most
// recent run is assumed to be ours (best effort, see the dispatch
// non-idempotency note on DispatchWorkflow).
func matchRun(runs []github.WorkflowRun, b *buildModel) *github.WorkflowRun {
	if len(runs) == 0 {
		return nil
	}
	id := b.ID.String()
	for i := range runs {
		if strings.Contains(runs[i].DisplayTitle, id) || strings.Contains(runs[i].Name, id) {
			return &runs[i]
		}
	}
	if b.CIRunID != nil {
		for i := range runs {
			if runs[i].ID == *b.CIRunID {
				return &runs[i]
			}
		}
	}
	return &runs[0]
}

// SimulateStrategy walks a build through the state machine on wall-clock
// thresholds and records placeholder artifacts, mirroring what a real run
// would produce. No external systems are touched.
type SimulateStrategy struct {
	now func() time.Time
}

func NewSimulateStrategy() *SimulateStrategy {
	return &SimulateStrategy{now: time.Now}
}

func (s *SimulateStrategy) Ready() error { return nil }

func (s *SimulateStrategy) Kickoff(context.Context, *buildModel) (string, error) {
	return StatusQueued, nil
}

func (s *SimulateStrategy) Poll(_ context.Context, b *buildModel) (pollOutcome, error) {
	elapsed := s.now().Sub(b.CreatedAt)
	switch {
	case elapsed < 2*time.Second:
		return pollOutcome{status: StatusQueued, persist: true}, nil
	case elapsed < 4*time.Second:
		return pollOutcome{status: StatusExtracting, persist: true}, nil
	case elapsed < 12*time.Second:
		return pollOutcome{status: StatusBuilding, persist: true}, nil
	}
	return pollOutcome{
		status:       StatusCompleted,
		persist:      true,
		placeholders: simulatedArtifacts(b),
	}, nil
}

func simulatedArtifacts(b *buildModel) []placeholderArtifact {
	type entry struct {
		ext  string
		size string
	}
	isElectron := b.Framework == string(target.Electron)
	isCapacitor := b.Framework == string(target.Capacitor)
	pick := func(yes bool, a, bSize string) string {
		if yes {
			return a
		}
		return bSize
	}

	var entries []entry
	switch target.OS(b.TargetOS) {
	case target.Windows:
		entries = []entry{
			{"exe", pick(isElectron, "~85 MB", "~8 MB")},
			{"msi", pick(isElectron, "~90 MB", "~10 MB")},
		}
	case target.MacOS:
		entries = []entry{
			{"dmg", pick(isElectron, "~120 MB", "~12 MB")},
			{"app", pick(isElectron, "~110 MB", "~10 MB")},
		}
	case target.Linux:
		entries = []entry{
			{"deb", pick(isElectron, "~80 MB", "~7 MB")},
			{"appimage", pick(isElectron, "~85 MB", "~9 MB")},
		}
	case target.Android:
		entries = []entry{
			{"apk", pick(isCapacitor, "~15 MB", "~20 MB")},
			{"aab", pick(isCapacitor, "~12 MB", "~18 MB")},
		}
	case target.IOS:
		entries = []entry{{"ipa", pick(isCapacitor, "~20 MB", "~25 MB")}}
	}

	name := strings.ToLower(strings.ReplaceAll(b.AppName, " ", "-"))
	out := make([]placeholderArtifact, 0, len(entries))
	for _, e := range entries {
		fileName := name + "." + e.ext
		out = append(out, placeholderArtifact{
			fileType:    e.ext,
			fileName:    fileName,
			fileSize:    e.size,
			storagePath: fmt.Sprintf("%s/%s", b.ID, fileName),
		})
	}
	return out
}
