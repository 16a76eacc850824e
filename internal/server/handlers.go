package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
)

// maxUploadBytes bounds timetable uploads.
const maxUploadBytes = 10 << 20

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request",
		zap.String("question", req.Question),
		zap.String("request_id", r.Header.Get(requestIDHeader)))

	resp, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	chunks, err := s.answerer.AnswerStream(r.Context(), req)
	if err != nil {
		s.logger.Error("stream setup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		switch chunk.Kind {
		case models.ChunkText:
			writeEvent(w, map[string]string{"text": chunk.Text})
		case models.ChunkError:
			writeEvent(w, map[string]string{"error": chunk.Message})
		case models.ChunkDone:
			io.WriteString(w, "data: [DONE]\n\n")
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	io.WriteString(w, "data: ")
	w.Write(data)
	io.WriteString(w, "\n\n")
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		s.logger.Error("list profiles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	s.respondJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	var profile models.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if profile.StudentID == "" || profile.Name == "" {
		s.respondError(w, http.StatusBadRequest, "student_id and name are required")
		return
	}
	if err := s.store.SaveProfile(r.Context(), &profile); err != nil {
		s.logger.Error("save profile failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	profile, err := s.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	err := s.store.DeleteProfile(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetTimetable(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	timetable, err := s.store.GetTimetable(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "timetable not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, timetable)
}

// handleUploadTimetable accepts a timetable PDF as the raw request body,
// extracts its text, and parses it into the student's weekly schedule.
func (s *Server) handleUploadTimetable(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusNotImplemented, "profiles not enabled")
		return
	}
	studentID := chi.URLParam(r, "id")
	if _, err := s.store.GetProfile(r.Context(), studentID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		s.logger.Error("profile lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	text, err := extract.PDFText(content)
	if err != nil {
		s.logger.Warn("timetable PDF extraction failed", zap.String("student_id", studentID), zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, "could not read PDF")
		return
	}
	timetable := extract.ParseTimetable(studentID, text)
	if len(timetable.Schedule) == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "no timetable entries recognized")
		return
	}
	if err := s.store.SaveTimetable(r.Context(), timetable); err != nil {
		s.logger.Error("save timetable failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, timetable)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.respondError(w, http.StatusNotImplemented, "cache stats not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	if s.index != nil {
		resp["vector_index_size"] = s.index.Size()
	}
	if s.stats != nil {
		stats := s.stats.Stats()
		resp["cache_entries"] = stats.Entries
		resp["cache_hits"] = stats.Hits
		resp["cache_misses"] = stats.Misses
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"retrieval_top_k":      s.config.Retrieval.TopK,
			"max_context_chars":    s.config.Retrieval.MaxContextChars,
			"cache_ttl_hours":      s.config.Cache.TTLHours,
		}
		diskBytes, err := session.DiskUsageBytes(
			s.config.Storage.SessionDBPath,
			s.config.Storage.VectorIndexPath,
			s.config.Storage.CacheSnapshotPath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
