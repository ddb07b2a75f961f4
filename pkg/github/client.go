// Package github is a minimal GitHub Actions API client covering the calls
// the build orchestrator needs: workflow lookup and creation, manual
// dispatch, run listing, and artifact retrieval.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	baseURL    = "https://api.github.com"
	apiVersion = "2022-11-28"
)

// ErrNotFound is returned when the remote object does not exist.
var ErrNotFound = errors.New("github: not found")

// APIError carries the HTTP status and remote body of a failed call so the
// orchestrator can record them on the build.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("github: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: unexpected status %d: %s", e.StatusCode, body)
}

// Client talks to the Actions API of a single repository.
type Client struct {
	http *resty.Client
	repo string
}

// NewClient creates a Client for owner/name authenticated with a PAT holding
// workflow-dispatch and contents-write scope.
func NewClient(token, repo string) (*Client, error) {
	if token == "" {
		return nil, errors.New("github: token is required")
	}
	if !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github: repository %q must be owner/name", repo)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", apiVersion).
		SetTimeout(30 * time.Second)

	return &Client{http: httpClient, repo: repo}, nil
}

// Repo returns the owner/name this client is bound to.
func (c *Client) Repo() string { return c.repo }

// GetRepository fetches repository metadata, primarily the default branch.
func (c *Client) GetRepository(ctx context.Context) (*Repository, error) {
	var repo Repository
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&repo).
		Get(fmt.Sprintf("/repos/%s", c.repo))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetWorkflow looks up a workflow definition by file name. Returns
// ErrNotFound when no such workflow is registered.
func (c *Client) GetWorkflow(ctx context.Context, fileName string) (*Workflow, error) {
	var wf Workflow
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&wf).
		Get(fmt.Sprintf("/repos/%s/actions/workflows/%s", c.repo, fileName))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateWorkflowFile publishes a workflow definition at
// .github/workflows/<fileName> via the contents API.
func (c *Client) CreateWorkflowFile(ctx context.Context, fileName, message string, content []byte) error {
	body := createFileRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(fmt.Sprintf("/repos/%s/contents/.github/workflows/%s", c.repo, fileName))
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// DispatchWorkflow triggers a workflow_dispatch event on ref with the given
// inputs. The call is not idempotent; re-dispatching starts a second run.
func (c *Client) DispatchWorkflow(ctx context.Context, fileName, ref string, inputs map[string]string) error {
	body := dispatchRequest{Ref: ref, Inputs: inputs}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", c.repo, fileName))
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// ListRecentRuns returns the most recent Actions runs for the repository,
// newest first.
func (c *Client) ListRecentRuns(ctx context.Context, perPage int) ([]WorkflowRun, error) {
	if perPage <= 0 {
		perPage = 10
	}

	var list runList
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("per_page", fmt.Sprintf("%d", perPage)).
		SetResult(&list).
		Get(fmt.Sprintf("/repos/%s/actions/runs", c.repo))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return list.WorkflowRuns, nil
}

// ListRunArtifacts enumerates the artifact bundles uploaded by a run.
func (c *Client) ListRunArtifacts(ctx context.Context, runID int64) ([]RunArtifact, error) {
	var list artifactList
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		Get(fmt.Sprintf("/repos/%s/actions/runs/%d/artifacts", c.repo, runID))
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

// DownloadArtifact fetches the raw zip bytes behind an artifact archive URL.
func (c *Client) DownloadArtifact(ctx context.Context, archiveURL string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(archiveURL)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func checkStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
}
