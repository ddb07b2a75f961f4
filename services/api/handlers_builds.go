package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"web2desk/services/orchestrator"
)

func (a *API) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	build, err := a.orch.Submit(r.Context(), req)
	switch {
	case errors.Is(err, orchestrator.ErrValidation):
		respondError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, orchestrator.ErrConfig):
		respondError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		a.log.Error().Err(err).Msg("create build")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"build": build})
}

func (a *API) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := buildID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	build, artifacts, err := a.orch.Get(r.Context(), id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Stringer("build_id", id).Msg("get build")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"build": build, "artifacts": artifacts})
}

func (a *API) handleCheckBuild(w http.ResponseWriter, r *http.Request) {
	id, err := buildID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.orch.Reconcile(r.Context(), id)
	if errors.Is(err, orchestrator.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		// Transient: the row is untouched, the next poll retries.
		a.log.Warn().Err(err).Stringer("build_id", id).Msg("status check failed")
		respondError(w, http.StatusBadGateway, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// handleBuildCallback receives the status report the CI workflow posts at
// the end of every run. It is authenticated with a shared bearer token.
func (a *API) handleBuildCallback(w http.ResponseWriter, r *http.Request) {
	if a.config.CallbackToken == "" {
		respondError(w, http.StatusServiceUnavailable, errors.New("callback endpoint not configured"))
		return
	}
	if bearerToken(r) != a.config.CallbackToken {
		respondError(w, http.StatusUnauthorized, errors.New("invalid callback token"))
		return
	}

	id, err := buildID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.orch.HandleCallback(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, orchestrator.ErrValidation):
		respondError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, orchestrator.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
		return
	case err != nil:
		a.log.Error().Err(err).Stringer("build_id", id).Msg("status callback")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func buildID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "buildID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid build id %q", raw)
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
