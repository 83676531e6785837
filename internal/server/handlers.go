package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/indexer"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/turn"
)

const maxBodyBytes = 1 << 20

type turnRequest struct {
	Message string `json:"message"`
}

type turnResponse struct {
	*turn.Result
	Failure string `json:"failure,omitempty"`
}

func newTurnResponse(res *turn.Result) turnResponse {
	out := turnResponse{Result: res}
	if res.Failure != nil {
		out.Failure = res.Failure.Error()
	}
	return out
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req turnRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("turn request", zap.String("session_id", id))
	res, err := s.conv.ProcessTurn(r.Context(), id, req.Message)
	if err != nil {
		s.respondFailure(w, "turn failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newTurnResponse(res))
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	res, err := s.conv.Greet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "greeting failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newTurnResponse(res))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.conv.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "get session failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var upd models.PreferencesUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.conv.UpdatePreferences(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.respondFailure(w, "update preferences failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondFailure(w, "delete session failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingChoice(w http.ResponseWriter, r *http.Request) {
	pc, err := s.conv.ListPendingChoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "pending choice failed", err)
		return
	}
	if pc == nil {
		s.respondError(w, http.StatusNotFound, "no pending choice")
		return
	}
	s.respondJSON(w, http.StatusOK, pc)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if s.topics == nil {
		s.respondError(w, http.StatusNotImplemented, "topic index not configured")
		return
	}
	topics, err := s.topics.ListTopics(r.Context())
	if err != nil {
		s.logger.Error("list topics failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "storage not configured")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list materials failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"materials": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleIndexMaterial(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	var m indexer.Material
	if err := decodeBody(w, r, &m); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if m.HasFileReferences() {
		s.respondError(w, http.StatusBadRequest, "file paths are not accepted over HTTP")
		return
	}
	if err := m.Prepare(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.ingester.IndexMaterial(r.Context(), &m, "")
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateTopics()
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"key":       m.Source().Key(),
		"fragments": n,
		"status":    "indexed",
	})
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	s.logger.Debug("delete material request", zap.String("key", key))
	if err := s.ingester.DeleteDocument(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "material not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidateTopics()
	s.respondJSON(w, http.StatusOK, map[string]string{"key": key, "status": "deleted"})
}

func (s *Server) invalidateTopics() {
	if inv, ok := s.topics.(Invalidator); ok {
		inv.Invalidate()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.storage != nil {
		ctx := r.Context()
		docs, err := s.storage.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("health: count documents failed", zap.Error(err))
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		fragments, err := s.storage.CountFragments(ctx)
		if err != nil {
			s.logger.Error("health: count fragments failed", zap.Error(err))
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		resp["documents"] = docs
		resp["fragments"] = fragments
	}
	if s.vectors != nil {
		resp["vector_index_size"] = s.vectors.Size()
	}
	if s.sessions != nil {
		resp["sessions"] = s.sessions.Len()
	}
	if s.config != nil {
		st := s.config.Storage
		if n, err := storage.UsageBytes(st.DatabasePath, st.BleveIndexPath, st.VectorIndexPath); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondFailure maps orchestrator errors onto status codes.
func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrEmptyUtterance):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrSessionBusy):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
