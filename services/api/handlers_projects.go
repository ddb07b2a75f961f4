package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"web2desk/pkg/target"
	"web2desk/pkg/telemetry"
	"web2desk/services/generator"
)

type generateRequest struct {
	AppName     string `json:"app_name"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	Framework   string `json:"framework"`
	TargetOS    string `json:"target_os"`
	WrapperMode string `json:"wrapper_mode,omitempty"`
}

type generateResponse struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	Framework   string `json:"framework"`
	TargetOS    string `json:"target_os"`
}

// handleGenerateProject builds a wrapper project scaffold, zips it and
// stores it for download. This path never touches CI.
func (a *API) handleGenerateProject(w http.ResponseWriter, r *http.Request) {
	if a.blobs == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("project storage not configured"))
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	fw, err := target.ParseFramework(req.Framework)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	osTarget, err := target.ParseOS(req.TargetOS)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := target.ParseMode(req.WrapperMode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	params := generator.Params{
		AppName:   req.AppName,
		SourceURL: req.SourceURL,
		Framework: fw,
		OS:        osTarget,
		Mode:      mode,
	}
	project, err := generator.Generate(params)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	now := time.Now().UTC()
	archive, err := project.Archive(params, a.signer, now)
	if err != nil {
		a.log.Error().Err(err).Str("app", req.AppName).Msg("archive project")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	key := fmt.Sprintf("projects/%d-%s", now.UnixMilli(), project.FileName)
	if err := a.blobs.Upload(r.Context(), a.config.InstallerBucket, key, archive, "application/zip"); err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("upload project archive")
		respondError(w, http.StatusBadGateway, err)
		return
	}

	telemetry.ProjectsGenerated.WithLabelValues(string(fw)).Inc()
	respondJSON(w, http.StatusOK, generateResponse{
		DownloadURL: a.blobs.PublicURL(a.config.InstallerBucket, key),
		FileName:    project.FileName,
		Framework:   string(fw),
		TargetOS:    string(osTarget),
	})
}
