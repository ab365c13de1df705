package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lexiqai/interview-assistant/internal/evaluation"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/resilience"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type transcriptionResponse struct {
	Transcript string `json:"transcript"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errorCode(err)})
}

// statusFor maps collaborator failures to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, evaluation.ErrValidation),
		errors.Is(err, stt.ErrEmptyAudio),
		errors.Is(err, stt.ErrAudioTooShort),
		errors.Is(err, stt.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, stt.ErrUnsupportedAudio):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, stt.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, interview.ErrRecordingNotFound):
		return http.StatusNotFound
	case errors.Is(err, stt.ErrConfiguration),
		errors.Is(err, evaluation.ErrConfiguration),
		errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) lookupInterview(w http.ResponseWriter, r *http.Request) (*interview.Interview, bool) {
	id := chi.URLParam(r, "interviewID")
	i, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("interview %q not found", id))
		return nil, false
	}
	return i, true
}

// readAudio reads an upload body up to the configured limit
func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, stt.ErrAudioTooLarge)
		} else {
			writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		}
		return nil, false
	}
	return data, true
}

func (s *Server) handleRecordingDownload(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	sp, err := speaker.Parse(chi.URLParam(r, "speaker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec := i.Recording(sp)
	if rec == nil {
		writeError(w, http.StatusNotFound, interview.ErrRecordingNotFound)
		return
	}

	w.Header().Set("Content-Type", rec.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename(recordingBase(sp))))
	w.WriteHeader(http.StatusOK)
	if _, err := rec.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write recording")
	}
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readAudio(w, r)
	if !ok {
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), data, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{Transcript: text})
}

func (s *Server) handleLibraryList(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, i.Library().List())
}

func (s *Server) handleLibraryUpload(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	data, ok := s.readAudio(w, r)
	if !ok {
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusUnprocessableEntity, stt.ErrEmptyAudio)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.Header.Get("X-Recording-Name")
	}
	if name == "" {
		name = "Recording " + strconv.Itoa(len(i.Library().List())+1)
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	entry := i.Library().Add(name, contentType, data)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleLibraryClear(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	i.Library().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLibraryDownload(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	entry, data, err := i.Library().Get(chi.URLParam(r, "recordingID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", entry.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleLibraryTranscribe(w http.ResponseWriter, r *http.Request) {
	i, ok := s.lookupInterview(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "recordingID")
	entry, data, err := i.Library().Get(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), data, entry.ContentType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	entry, err = i.Library().SetTranscript(id, text)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
