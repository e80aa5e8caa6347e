// Package api is the JSON HTTP surface over studio sessions.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/gemini"
	"camera-angle-studio/internal/history"
	"camera-angle-studio/internal/metrics"
	"camera-angle-studio/internal/settings"
	"camera-angle-studio/internal/studio"
	"camera-angle-studio/internal/upload"
)

const maxUploadBytes = upload.MaxBytes + 1<<20

type Options struct {
	Studios *studio.Registry
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics. Nil means promhttp.Handler().
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type Server struct {
	studios *studio.Registry
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  *mux.Router
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type sessionResponse struct {
	ID       string            `json:"id"`
	Camera   camera.State      `json:"camera"`
	Settings settings.Settings `json:"settings"`
	Prompt   string            `json:"prompt"`
	HasImage bool              `json:"hasImage"`
	CanUndo  bool              `json:"canUndo"`
	CanRedo  bool              `json:"canRedo"`
	Busy     bool              `json:"busy"`
	History  int               `json:"history"`
}

type cameraResponse struct {
	Camera  camera.State `json:"camera"`
	Prompt  string       `json:"prompt"`
	CanUndo bool         `json:"canUndo"`
	CanRedo bool         `json:"canRedo"`
}

type imageResponse struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
}

type historyResponse struct {
	Results []history.Result `json:"results"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	s := &Server{
		studios: opts.Studios,
		metrics: opts.Metrics,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	r := s.router
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)

	api.HandleFunc("/sessions/{id}", s.withSession(s.handleGetSession)).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)

	sess := api.PathPrefix("/sessions/{id}").Subrouter()
	sess.HandleFunc("/image", s.withSession(s.handlePutImage)).Methods(http.MethodPut)
	sess.HandleFunc("/camera", s.withSession(s.handleGetCamera)).Methods(http.MethodGet)
	sess.HandleFunc("/camera", s.withSession(s.handlePatchCamera)).Methods(http.MethodPatch)
	sess.HandleFunc("/camera/reset", s.withSession(s.handleResetCamera)).Methods(http.MethodPost)
	sess.HandleFunc("/camera/undo", s.withSession(s.handleUndo)).Methods(http.MethodPost)
	sess.HandleFunc("/camera/redo", s.withSession(s.handleRedo)).Methods(http.MethodPost)
	sess.HandleFunc("/camera/preset/{name}", s.withSession(s.handlePreset)).Methods(http.MethodPost)
	sess.HandleFunc("/settings", s.withSession(s.handleGetSettings)).Methods(http.MethodGet)
	sess.HandleFunc("/settings", s.withSession(s.handlePatchSettings)).Methods(http.MethodPatch)
	sess.HandleFunc("/prompt", s.withSession(s.handlePrompt)).Methods(http.MethodGet)
	sess.HandleFunc("/generate", s.withSession(s.handleGenerate)).Methods(http.MethodPost)
	sess.HandleFunc("/history", s.withSession(s.handleHistory)).Methods(http.MethodGet)
	sess.HandleFunc("/history", s.withSession(s.handleClearHistory)).Methods(http.MethodDelete)
	sess.HandleFunc("/history/{resultId}/select", s.withSession(s.handleSelectResult)).Methods(http.MethodPost)

	r.Use(s.withLogging)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *studio.Session)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.studios.Get(mux.Vars(r)["id"])
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.studios.Len()})
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, camera.Presets())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, describe(s.studios.Create()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.studios.Delete(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}

	img, err := upload.FromBytes(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, apiError{Error: err.Error()})
		return
	}

	sess.SetSource(img)
	writeJSON(w, http.StatusOK, imageResponse{Name: img.Name, MIMEType: img.MIMEType, Size: img.Size})
}

func (s *Server) handleGetCamera(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handlePatchCamera(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var p camera.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid camera patch"})
		return
	}
	sess.UpdateCamera(p)
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handleResetCamera(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	sess.ResetCamera()
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	if _, ok := sess.Undo(); !ok {
		writeJSON(w, http.StatusConflict, apiError{Error: "nothing to undo"})
		return
	}
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	if _, ok := sess.Redo(); !ok {
		writeJSON(w, http.StatusConflict, apiError{Error: "nothing to redo"})
		return
	}
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	if _, ok := sess.ApplyPreset(mux.Vars(r)["name"]); !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown preset"})
		return
	}
	writeJSON(w, http.StatusOK, cameraState(sess))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeJSON(w, http.StatusOK, sess.Settings())
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	var p settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid settings patch"})
		return
	}
	writeJSON(w, http.StatusOK, sess.UpdateSettings(p))
}

func (s *Server) handlePrompt(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeJSON(w, http.StatusOK, map[string]string{"prompt": sess.Prompt()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	res, err := sess.Generate(r.Context(), func(seconds int) {
		s.logger.Info("generation waiting", "session", sess.ID(), "seconds", seconds)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	writeJSON(w, http.StatusOK, historyResponse{Results: sess.History()})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request, sess *studio.Session) {
	sess.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectResult(w http.ResponseWriter, r *http.Request, sess *studio.Session) {
	res, err := sess.SelectResult(mux.Vars(r)["resultId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func describe(sess *studio.Session) sessionResponse {
	_, hasImage := sess.Source()
	return sessionResponse{
		ID:       sess.ID(),
		Camera:   sess.Camera(),
		Settings: sess.Settings(),
		Prompt:   sess.Prompt(),
		HasImage: hasImage,
		CanUndo:  sess.CanUndo(),
		CanRedo:  sess.CanRedo(),
		Busy:     sess.Busy(),
		History:  len(sess.History()),
	}
}

func cameraState(sess *studio.Session) cameraResponse {
	return cameraResponse{
		Camera:  sess.Camera(),
		Prompt:  sess.Prompt(),
		CanUndo: sess.CanUndo(),
		CanRedo: sess.CanRedo(),
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrGenerationInFlight):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	case errors.Is(err, studio.ErrNoSourceImage):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	case errors.Is(err, history.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
		return
	}

	ge := gemini.Classify(err)
	status := http.StatusBadGateway
	switch ge.Kind {
	case gemini.KindQuota:
		status = http.StatusTooManyRequests
	case gemini.KindAuth:
		status = http.StatusUnauthorized
	case gemini.KindSafety:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, apiError{Error: ge.Message, Kind: string(ge.Kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		dur := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, route, rec.status, dur)
		s.logger.Info("http", "method", r.Method, "route", route, "status", strconv.Itoa(rec.status), "dur_ms", dur.Milliseconds())
	})
}
