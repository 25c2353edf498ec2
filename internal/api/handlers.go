package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/account-reconciler/internal/types"
	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListAccounts returns the roster, optionally filtered by platform
// display name via ?platform=.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	accounts := s.repo.Accounts()
	if platform != "" {
		accounts = s.repo.ByPlatform(platform)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "account id must be numeric")
		return
	}
	account := s.repo.ByID(id)
	if account == nil {
		writeError(w, http.StatusNotFound, "not_found", "account not found")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.repo.RefreshStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"progress": status.Progress(),
	})
}

func (s *Server) handleFreshness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

// handleQuickFetch runs the unvalidated quick load synchronously and returns
// the resulting roster.
func (s *Server) handleQuickFetch(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.QuickFetch(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": s.repo.Accounts(),
	})
}

// handleFetch schedules the debounced validated fetch and returns
// immediately.
func (s *Server) handleFetch(w http.ResponseWriter, _ *http.Request) {
	s.orchestrator.FetchAccounts()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// handleValidateAll kicks off the background sweep on its own goroutine. The
// sweep self-gates on cooldown, throttle and the in-progress flag, so
// repeated requests are harmless.
func (s *Server) handleValidateAll(w http.ResponseWriter, _ *http.Request) {
	go s.orchestrator.ValidateAllInBackground(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRetryExceptions(w http.ResponseWriter, _ *http.Request) {
	go s.orchestrator.RetryExceptionAccounts(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	result := s.orchestrator.ForceRefresh(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

type batchRefreshRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleBatchRefresh(w http.ResponseWriter, r *http.Request) {
	var req batchRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON with an ids array")
		return
	}
	result := s.orchestrator.BatchRefresh(r.Context(), req.IDs)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.orchestrator.ResetState()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "account id must be numeric")
		return
	}
	if err := s.orchestrator.DeleteAccount(r.Context(), id); err != nil {
		var serviceErr *types.ServiceError
		if errors.As(err, &serviceErr) {
			writeJSON(w, http.StatusBadGateway, serviceErr)
			return
		}
		writeError(w, http.StatusBadGateway, "delete_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
