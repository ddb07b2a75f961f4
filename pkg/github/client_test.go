package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// writeJSON mirrors the API's responses: resty only unmarshals SetResult
// targets when the content type says JSON.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-token", "acme/builder")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.http.SetBaseURL(srv.URL)
	return c
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "acme/builder"); err == nil {
		t.Error("empty token accepted")
	}
	if _, err := NewClient("tok", "not-a-repo"); err == nil {
		t.Error("repo without owner accepted")
	}
}

func TestGetRepository(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/builder" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, Repository{FullName: "acme/builder", DefaultBranch: "main"})
	}))

	repo, err := c.GetRepository(context.Background())
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if repo.DefaultBranch != "main" {
		t.Errorf("DefaultBranch = %q, want main", repo.DefaultBranch)
	}
	if c.Repo() != "acme/builder" {
		t.Errorf("Repo() = %q", c.Repo())
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetWorkflow(context.Background(), "build-electron-windows.yml")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetWorkflow(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/repos/acme/builder/actions/workflows/build-electron-windows.yml"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, Workflow{ID: 42, Path: ".github/workflows/build-electron-windows.yml", State: "active"})
	}))

	wf, err := c.GetWorkflow(context.Background(), "build-electron-windows.yml")
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if wf.ID != 42 {
		t.Errorf("ID = %d, want 42", wf.ID)
	}
}

func TestCreateWorkflowFile(t *testing.T) {
	content := []byte("name: Build\n")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		want := "/repos/acme/builder/contents/.github/workflows/build.yml"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		var req createFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			t.Fatalf("content is not base64: %v", err)
		}
		if string(decoded) != string(content) {
			t.Errorf("content = %q", decoded)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	if err := c.CreateWorkflowFile(context.Background(), "build.yml", "Add build workflow", content); err != nil {
		t.Fatalf("CreateWorkflowFile: %v", err)
	}
}

func TestDispatchWorkflowRejection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Required input missing"}`))
	}))

	err := c.DispatchWorkflow(context.Background(), "build.yml", "main", map[string]string{"app_name": "Demo"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
}

func TestListRecentRuns(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "10" {
			t.Errorf("per_page = %q, want 10", got)
		}
		writeJSON(w, runList{TotalCount: 1, WorkflowRuns: []WorkflowRun{
			{ID: 7, DisplayTitle: "Build Demo [abc]", Status: "completed", Conclusion: "success"},
		}})
	}))

	runs, err := c.ListRecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != 7 {
		t.Fatalf("runs = %+v", runs)
	}
	if !runs[0].Succeeded() {
		t.Error("run not reported as succeeded")
	}
}

func TestListRunArtifacts(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/repos/acme/builder/actions/runs/7/artifacts"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		writeJSON(w, artifactList{TotalCount: 1, Artifacts: []RunArtifact{
			{ID: 1, Name: "windows-installers", ArchiveDownloadURL: "http://example/zip"},
		}})
	}))

	arts, err := c.ListRunArtifacts(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListRunArtifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].Name != "windows-installers" {
		t.Fatalf("artifacts = %+v", arts)
	}
}
