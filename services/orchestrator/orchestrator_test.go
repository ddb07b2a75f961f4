package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"web2desk/pkg/github"
	"web2desk/pkg/target"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&buildModel{}, &artifactModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type stubStrategy struct {
	readyErr   error
	kickStatus string
	kickErr    error
	out        pollOutcome
	pollErr    error

	kicked chan struct{}
	polled int
}

func (s *stubStrategy) Ready() error { return s.readyErr }

func (s *stubStrategy) Kickoff(context.Context, *buildModel) (string, error) {
	if s.kicked != nil {
		defer close(s.kicked)
	}
	return s.kickStatus, s.kickErr
}

func (s *stubStrategy) Poll(context.Context, *buildModel) (pollOutcome, error) {
	s.polled++
	return s.out, s.pollErr
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		AppName:     "Demo",
		SourceType:  "url",
		SourceURL:   "https://example.com",
		Framework:   "electron",
		TargetOS:    "windows",
		WrapperMode: "webview",
	}
}

func TestSubmitValidation(t *testing.T) {
	db := testDB(t)
	o := New(db, &stubStrategy{kickStatus: StatusBuilding}, nil, 0, zerolog.Nop())

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"empty app name", func(r *SubmitRequest) { r.AppName = "  " }},
		{"url source without url", func(r *SubmitRequest) { r.SourceURL = "" }},
		{"github source without url", func(r *SubmitRequest) { r.SourceType = "github"; r.SourceURL = "" }},
		{"unknown framework", func(r *SubmitRequest) { r.Framework = "flutter" }},
		{"unknown os", func(r *SubmitRequest) { r.TargetOS = "beos" }},
		{"unsupported pair", func(r *SubmitRequest) { r.Framework = "electron"; r.TargetOS = "ios" }},
		{"unknown source type", func(r *SubmitRequest) { r.SourceType = "ftp" }},
		{"unknown mode", func(r *SubmitRequest) { r.WrapperMode = "kiosk" }},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		if _, err := o.Submit(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}

	var count int64
	db.Model(&buildModel{}).Count(&count)
	if count != 0 {
		t.Errorf("%d build rows created by invalid requests", count)
	}
}

func TestSubmitZipSourceNeedsNoURL(t *testing.T) {
	db := testDB(t)
	o := New(db, &stubStrategy{kickStatus: StatusBuilding, kicked: make(chan struct{})}, nil, 0, zerolog.Nop())

	req := validRequest()
	req.SourceType = "zip"
	req.SourceURL = ""
	b, err := o.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID == uuid.Nil {
		t.Error("missing build id")
	}
}

func TestSubmitConfigError(t *testing.T) {
	db := testDB(t)
	o := New(db, &stubStrategy{readyErr: errors.New("no token")}, nil, 0, zerolog.Nop())

	if _, err := o.Submit(context.Background(), validRequest()); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	var count int64
	db.Model(&buildModel{}).Count(&count)
	if count != 0 {
		t.Errorf("config error left %d build rows behind", count)
	}
}

func TestSubmitKicksOff(t *testing.T) {
	db := testDB(t)
	strat := &stubStrategy{kickStatus: StatusBuilding, kicked: make(chan struct{})}
	o := New(db, strat, nil, 0, zerolog.Nop())

	b, err := o.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusPreparing {
		t.Errorf("initial status = %q, want preparing", b.Status)
	}
	if len(b.ID.String()) == 0 || b.ID == uuid.Nil {
		t.Error("empty build id")
	}

	select {
	case <-strat.kicked:
	case <-time.After(2 * time.Second):
		t.Fatal("kickoff never ran")
	}
	waitForStatus(t, db, b.ID, StatusBuilding)
}

// The snapshot Submit returns is taken before the kickoff goroutine starts,
// so concurrent status writes never touch it. Run with -race.
func TestSubmitSnapshotUnaffectedByKickoff(t *testing.T) {
	db := testDB(t)
	strat := &stubStrategy{kickStatus: StatusBuilding}
	o := New(db, strat, nil, 0, zerolog.Nop())

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := o.Submit(context.Background(), validRequest())
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- b.Status
		}()
	}
	wg.Wait()
	close(results)

	for got := range results {
		if got != StatusPreparing {
			t.Fatalf("submit returned %q, want preparing", got)
		}
	}
}

func waitForStatus(t *testing.T, db *gorm.DB, id uuid.UUID, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var b buildModel
		if err := db.First(&b, "id = ?", id).Error; err == nil && b.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	var b buildModel
	db.First(&b, "id = ?", id)
	t.Fatalf("status = %q, want %q", b.Status, want)
}

func seedBuild(t *testing.T, db *gorm.DB, status string) *buildModel {
	t.Helper()
	url := "https://example.com"
	b := &buildModel{
		ID:          uuid.New(),
		AppName:     "Demo",
		Framework:   "electron",
		TargetOS:    "windows",
		SourceType:  "url",
		SourceURL:   &url,
		WrapperMode: "webview",
		Status:      status,
	}
	b.ProjectConfig = projectConfig(b)
	if err := db.Create(b).Error; err != nil {
		t.Fatal(err)
	}
	return b
}

func TestReconcileTerminalShortCircuit(t *testing.T) {
	db := testDB(t)
	strat := &stubStrategy{out: pollOutcome{status: StatusFailed, persist: true}}
	o := New(db, strat, nil, 0, zerolog.Nop())
	b := seedBuild(t, db, StatusCompleted)

	res, err := o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("status = %q, terminal state was downgraded", res.Status)
	}
	if strat.polled != 0 {
		t.Error("terminal build should not be polled")
	}
}

func TestReconcileNoMatchNoMutation(t *testing.T) {
	db := testDB(t)
	strat := &stubStrategy{out: pollOutcome{status: StatusBuilding}}
	o := New(db, strat, nil, 0, zerolog.Nop())
	b := seedBuild(t, db, StatusPreparing)

	res, err := o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusBuilding {
		t.Errorf("reported status = %q, want building", res.Status)
	}
	var row buildModel
	db.First(&row, "id = ?", b.ID)
	if row.Status != StatusPreparing {
		t.Errorf("row status = %q, should be untouched", row.Status)
	}
}

func TestReconcileTransientErrorLeavesRow(t *testing.T) {
	db := testDB(t)
	strat := &stubStrategy{pollErr: errors.New("connection reset")}
	o := New(db, strat, nil, 0, zerolog.Nop())
	b := seedBuild(t, db, StatusBuilding)

	if _, err := o.Reconcile(context.Background(), b.ID); err == nil {
		t.Fatal("expected error")
	}
	var row buildModel
	db.First(&row, "id = ?", b.ID)
	if row.Status != StatusBuilding || row.ErrorMessage != nil {
		t.Errorf("transient poll failure mutated the row: %+v", row)
	}
}

func TestReconcileUnknownBuild(t *testing.T) {
	db := testDB(t)
	o := New(db, &stubStrategy{}, nil, 0, zerolog.Nop())
	if _, err := o.Reconcile(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// fakeCI implements the CI interface in memory.
type fakeCI struct {
	workflows  map[string][]byte
	runs       []github.WorkflowRun
	dispatched []map[string]string

	dispatchErr error
	listErr     error
}

func newFakeCI() *fakeCI {
	return &fakeCI{workflows: map[string][]byte{}}
}

func (f *fakeCI) GetWorkflow(_ context.Context, fileName string) (*github.Workflow, error) {
	if _, ok := f.workflows[fileName]; !ok {
		return nil, github.ErrNotFound
	}
	return &github.Workflow{Name: fileName, Path: ".github/workflows/" + fileName, State: "active"}, nil
}

func (f *fakeCI) CreateWorkflowFile(_ context.Context, fileName, _ string, content []byte) error {
	f.workflows[fileName] = content
	return nil
}

func (f *fakeCI) DispatchWorkflow(_ context.Context, fileName, ref string, inputs map[string]string) error {
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	f.dispatched = append(f.dispatched, inputs)
	return nil
}

func (f *fakeCI) ListRecentRuns(context.Context, int) ([]github.WorkflowRun, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.runs, nil
}

// recordingArchiver writes one artifact row per call, like the real
// archiver would after unpacking a bundle.
type recordingArchiver struct {
	db    *gorm.DB
	calls int
}

func (r *recordingArchiver) Archive(ctx context.Context, buildID uuid.UUID, appName string, runID int64) (int, error) {
	r.calls++
	var count int64
	r.db.Model(&artifactModel{}).Where("build_id = ?", buildID).Count(&count)
	if count > 0 {
		return 0, nil
	}
	url := "https://blobs.test/installers/demo.exe"
	row := artifactModel{
		ID:          uuid.New(),
		BuildID:     buildID,
		FileType:    "exe",
		FileName:    "demo-windows-installers-demo.exe",
		FileSize:    "1.5 KB",
		StoragePath: fmt.Sprintf("%s/demo.exe", buildID),
		DownloadURL: &url,
	}
	return 1, r.db.Create(&row).Error
}

func TestDispatchScenarioSuccess(t *testing.T) {
	db := testDB(t)
	ci := newFakeCI()
	arch := &recordingArchiver{db: db}
	strat := NewDispatchStrategy(ci, arch, "main", time.Second, zerolog.Nop())
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusPreparing)
	o.kickoff(context.Background(), b)

	// Workflow was synthesized, published and dispatched with the build id.
	if _, ok := ci.workflows["build-electron-windows.yml"]; !ok {
		t.Fatal("workflow file was not created")
	}
	if len(ci.dispatched) != 1 {
		t.Fatalf("%d dispatches, want 1", len(ci.dispatched))
	}
	inputs := ci.dispatched[0]
	if inputs["build_id"] != b.ID.String() {
		t.Errorf("dispatch build_id = %q", inputs["build_id"])
	}
	if inputs["app_name"] != "Demo" || inputs["source_url"] != "https://example.com" {
		t.Errorf("dispatch inputs = %v", inputs)
	}
	if inputs["project_config"] == "" || !strings.Contains(inputs["project_config"], "com.web2desk.demo") {
		t.Errorf("project_config = %q", inputs["project_config"])
	}
	waitForStatus(t, db, b.ID, StatusBuilding)

	// Run shows up in progress first.
	ci.runs = []github.WorkflowRun{{
		ID:           991,
		DisplayTitle: "Build Demo [" + b.ID.String() + "]",
		Status:       "in_progress",
	}}
	res, err := o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusBuilding {
		t.Errorf("status = %q, want building", res.Status)
	}

	// Run succeeds: build completes and artifacts are archived.
	ci.runs[0].Status = "completed"
	ci.runs[0].Conclusion = "success"
	res, err = o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0].FileType != "exe" {
		t.Fatalf("artifacts = %+v", res.Artifacts)
	}
	if res.Artifacts[0].DownloadURL == "" {
		t.Error("artifact missing download url")
	}

	var row buildModel
	db.First(&row, "id = ?", b.ID)
	if row.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if row.CIRunID == nil || *row.CIRunID != 991 {
		t.Errorf("ci_run_id = %v", row.CIRunID)
	}

	// Reconciling again is idempotent: same artifact set, no rerun of
	// archiving.
	calls := arch.calls
	res, err = o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCompleted || len(res.Artifacts) != 1 {
		t.Errorf("second reconcile: status=%s artifacts=%d", res.Status, len(res.Artifacts))
	}
	if arch.calls != calls {
		t.Error("terminal build re-ran archiving")
	}
}

func TestDispatchScenarioRunFailure(t *testing.T) {
	db := testDB(t)
	ci := newFakeCI()
	strat := NewDispatchStrategy(ci, &recordingArchiver{db: db}, "main", time.Second, zerolog.Nop())
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusBuilding)
	ci.runs = []github.WorkflowRun{{
		ID:           5,
		DisplayTitle: "Build Demo [" + b.ID.String() + "]",
		Status:       "completed",
		Conclusion:   "failure",
	}}

	res, err := o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if !strings.Contains(res.ErrorMessage, "Workflow failed: failure") {
		t.Errorf("error message = %q", res.ErrorMessage)
	}
	if len(res.Artifacts) != 0 {
		t.Errorf("failed build recorded %d artifacts", len(res.Artifacts))
	}
}

func TestDispatchScenarioDispatchRejected(t *testing.T) {
	db := testDB(t)
	ci := newFakeCI()
	ci.dispatchErr = &github.APIError{StatusCode: 422, Body: "workflow does not have workflow_dispatch trigger"}
	strat := NewDispatchStrategy(ci, &recordingArchiver{db: db}, "main", time.Second, zerolog.Nop())
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusPreparing)
	o.kickoff(context.Background(), b)

	var row buildModel
	db.First(&row, "id = ?", b.ID)
	if row.Status != StatusFailed {
		t.Fatalf("status = %q, want failed (never building)", row.Status)
	}
	if row.ErrorMessage == nil || !strings.Contains(*row.ErrorMessage, "Failed to start workflow: 422") {
		t.Errorf("error message = %v", row.ErrorMessage)
	}
}

func TestMatchRunFallsBackToMostRecent(t *testing.T) {
	b := &buildModel{ID: uuid.New()}
	runs := []github.WorkflowRun{
		{ID: 3, DisplayTitle: "Build Other [nope]"},
		{ID: 2, DisplayTitle: "older"},
	}
	if got := matchRun(runs, b); got.ID != 3 {
		t.Errorf("fallback picked run %d, want most recent (3)", got.ID)
	}

	runs[1].DisplayTitle = "Build Demo [" + b.ID.String() + "]"
	if got := matchRun(runs, b); got.ID != 2 {
		t.Errorf("correlation match picked run %d, want 2", got.ID)
	}
}

func TestSimulateStrategyWalk(t *testing.T) {
	base := time.Now()
	strat := NewSimulateStrategy()
	b := &buildModel{ID: uuid.New(), AppName: "My App", Framework: "electron", TargetOS: "windows", CreatedAt: base}

	steps := []struct {
		offset time.Duration
		want   string
	}{
		{1 * time.Second, StatusQueued},
		{3 * time.Second, StatusExtracting},
		{5 * time.Second, StatusBuilding},
		{13 * time.Second, StatusCompleted},
	}
	for _, step := range steps {
		strat.now = func() time.Time { return base.Add(step.offset) }
		out, err := strat.Poll(context.Background(), b)
		if err != nil {
			t.Fatal(err)
		}
		if out.status != step.want {
			t.Errorf("at +%s: status = %q, want %q", step.offset, out.status, step.want)
		}
	}

	strat.now = func() time.Time { return base.Add(time.Minute) }
	out, _ := strat.Poll(context.Background(), b)
	if len(out.placeholders) != 2 {
		t.Fatalf("%d placeholders, want 2 for windows", len(out.placeholders))
	}
	if out.placeholders[0].fileName != "my-app.exe" {
		t.Errorf("placeholder name = %q", out.placeholders[0].fileName)
	}
}

func TestSimulateEndToEnd(t *testing.T) {
	db := testDB(t)
	strat := NewSimulateStrategy()
	base := time.Now().Add(-time.Minute)
	strat.now = time.Now
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusQueued)
	db.Model(&buildModel{}).Where("id = ?", b.ID).Update("created_at", base)
	b.CreatedAt = base

	res, err := o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if len(res.Artifacts) != 2 {
		t.Fatalf("%d artifacts, want 2", len(res.Artifacts))
	}

	// Second reconcile does not duplicate placeholder rows.
	res, err = o.Reconcile(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Artifacts) != 2 {
		t.Errorf("after rerun: %d artifacts, want 2", len(res.Artifacts))
	}
}

func TestHandleCallback(t *testing.T) {
	db := testDB(t)
	ci := newFakeCI()
	strat := NewDispatchStrategy(ci, &recordingArchiver{db: db}, "main", time.Second, zerolog.Nop())
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusBuilding)

	// No run visible yet; the callback's word is taken.
	res, err := o.HandleCallback(context.Background(), b.ID, StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}

	// Terminal build: repeated callbacks are no-ops.
	res, err = o.HandleCallback(context.Background(), b.ID, StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFailed {
		t.Errorf("callback overwrote terminal status: %q", res.Status)
	}

	if _, err := o.HandleCallback(context.Background(), b.ID, "bogus"); !errors.Is(err, ErrValidation) {
		t.Errorf("bogus status err = %v, want ErrValidation", err)
	}
}

func TestHandleCallbackCompletedArchives(t *testing.T) {
	db := testDB(t)
	ci := newFakeCI()
	arch := &recordingArchiver{db: db}
	strat := NewDispatchStrategy(ci, arch, "main", time.Second, zerolog.Nop())
	o := New(db, strat, nil, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusBuilding)
	ci.runs = []github.WorkflowRun{{
		ID:           44,
		DisplayTitle: "Build Demo [" + b.ID.String() + "]",
		Status:       "completed",
		Conclusion:   "success",
	}}

	res, err := o.HandleCallback(context.Background(), b.ID, StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if arch.calls == 0 {
		t.Error("completed callback did not archive artifacts")
	}
	if len(res.Artifacts) != 1 {
		t.Errorf("%d artifacts, want 1", len(res.Artifacts))
	}
}

// recordingPublisher collects the statuses pushed on the update subject.
type recordingPublisher struct {
	mu       sync.Mutex
	statuses []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, v any) error {
	b, ok := v.(Build)
	if !ok {
		return fmt.Errorf("published %T, want Build", v)
	}
	p.mu.Lock()
	p.statuses = append(p.statuses, b.Status)
	p.mu.Unlock()
	return nil
}

func TestStatusWriteLosesToTerminalRow(t *testing.T) {
	db := testDB(t)
	pub := &recordingPublisher{}
	o := New(db, &stubStrategy{}, pub, 0, zerolog.Nop())

	b := seedBuild(t, db, StatusBuilding)
	stale := *b

	// Another reconcile completes the build between our read and the write.
	if err := db.Model(&buildModel{}).Where("id = ?", b.ID).Update("status", StatusCompleted).Error; err != nil {
		t.Fatal(err)
	}

	o.markFailed(context.Background(), &stale, "Workflow reported failure")

	var row buildModel
	db.First(&row, "id = ?", b.ID)
	if row.Status != StatusCompleted {
		t.Fatalf("row status = %q, terminal state was overwritten", row.Status)
	}
	if stale.Status != StatusBuilding {
		t.Errorf("losing write mutated the in-memory status to %q", stale.Status)
	}
	if stale.ErrorMessage != nil {
		t.Errorf("losing write set error message %q", *stale.ErrorMessage)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, st := range pub.statuses {
		if st == StatusFailed {
			t.Error("losing status was published to subscribers")
		}
	}
}

func TestGetNeverMutates(t *testing.T) {
	db := testDB(t)
	o := New(db, &stubStrategy{}, nil, 0, zerolog.Nop())
	b := seedBuild(t, db, StatusBuilding)

	got, arts, err := o.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusBuilding || got.AppName != "Demo" {
		t.Errorf("unexpected build: %+v", got)
	}
	if len(arts) != 0 {
		t.Errorf("unexpected artifacts: %+v", arts)
	}
	if _, _, err := o.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProjectConfigShapes(t *testing.T) {
	url := "https://example.com"
	for _, fw := range []target.Framework{target.Electron, target.Tauri, target.Capacitor, target.ReactNative} {
		b := &buildModel{AppName: "Demo App", Framework: string(fw), TargetOS: "windows", WrapperMode: "webview", SourceURL: &url}
		cfg := projectConfig(b)
		if len(cfg) == 0 {
			t.Errorf("%s: empty project config", fw)
		}
	}
	b := &buildModel{AppName: "Demo", Framework: "capacitor", TargetOS: "android", WrapperMode: "webview", SourceURL: &url}
	cfg := projectConfig(b)
	server, ok := cfg["server"].(map[string]any)
	if !ok || server["url"] != url {
		t.Errorf("capacitor webview config missing server url: %v", cfg)
	}
}
