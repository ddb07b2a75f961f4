package github

import "time"

// Repository is the subset of the repositories API response the service uses.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

// Workflow describes a workflow definition registered in the repository.
type Workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

// WorkflowRun is a single Actions run. Status is "queued", "in_progress" or
// "completed"; Conclusion is set only once the run is completed.
type WorkflowRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Completed reports whether the run reached a CI-terminal state.
func (r WorkflowRun) Completed() bool { return r.Status == "completed" }

// Succeeded reports whether a completed run concluded successfully.
func (r WorkflowRun) Succeeded() bool { return r.Completed() && r.Conclusion == "success" }

type runList struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// RunArtifact is an artifact bundle produced by a workflow run. The download
// URL always yields a zip container.
type RunArtifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	SizeInBytes        int64  `json:"size_in_bytes"`
	ArchiveDownloadURL string `json:"archive_download_url"`
	Expired            bool   `json:"expired"`
}

type artifactList struct {
	TotalCount int           `json:"total_count"`
	Artifacts  []RunArtifact `json:"artifacts"`
}

type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

type createFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
}
