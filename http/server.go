package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout is the time given for outstanding requests to finish
// before the server is closed.
const ShutdownTimeout = 5 * time.Second

// MaxRequestBodySize caps the size of JSON request bodies.
const MaxRequestBodySize = 32 << 20

// APIKeyHeader carries the API key when one is configured.
const APIKeyHeader = "X-API-Key"

// Server serves the JSON API over HTTP.
type Server struct {
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	// Addr is the bind address, e.g. ":8080".
	Addr string

	// APIKey, when set, must be sent in the X-API-Key header on every
	// route except /health.
	APIKey string

	Logger *slog.Logger

	// Extractor, when set, checks template rules before they are saved.
	Extractor harvest.Extractor

	ScrapeService   harvest.ScrapeService
	EnrichService   harvest.EnrichService
	ExportService   harvest.ExportService
	TemplateService harvest.TemplateService
	RunService      harvest.RunService
}

// NewServer returns a new Server with its routes registered.
func NewServer() *Server {
	s := &Server{
		server: &http.Server{},
		router: chi.NewRouter(),
		Logger: slog.Default(),
	}
	s.server.Handler = s.router

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/scrape", s.handleScrape)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/export", s.handleExport)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleTemplateList)
			r.Post("/", s.handleTemplateSave)
			r.Get("/{name}", s.handleTemplateShow)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleRunList)
			r.Get("/{id}", s.handleRunShow)
		})
	})

	return s
}

// ServeHTTP routes a request. It lets tests drive the server without a
// listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open binds to Addr and starts serving in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Port returns the bound port. Useful when Addr is ":0".
func (s *Server) Port() int {
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" {
			key := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.APIKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
					Code:    "unauthorized",
					Message: "invalid or missing API key",
				}})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scrapeRequest also accepts a plain URL list, appended to targets.
type scrapeRequest struct {
	harvest.ScrapeRequest
	URLs []string `json:"urls,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	req.Targets = append(req.Targets, harvest.TargetsFromURLs(req.URLs)...)

	resp, err := s.ScrapeService.Scrape(r.Context(), &req.ScrapeRequest, nil)
	if resp == nil {
		s.Error(w, r, err)
		return
	}

	// Records are returned even when the run could not be saved.
	out := scrapeResponse{ScrapeResponse: resp}
	if err != nil {
		s.Logger.Warn("scrape incomplete",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		out.Warning = "results were not saved"
		if resp.Canceled {
			out.Warning = "scrape canceled before all targets were attempted"
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// scrapeResponse adds a warning when results are returned alongside an error.
type scrapeResponse struct {
	*harvest.ScrapeResponse
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if s.EnrichService == nil {
		s.Error(w, r, harvest.Errorf(harvest.EINVALID, "enrichment is not configured"))
		return
	}

	var req harvest.EnrichRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}

	resp, err := s.EnrichService.Enrich(r.Context(), &req)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req harvest.ExportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}

	a, err := s.ExportService.Export(&req)
	if err != nil {
		s.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	templates, err := s.TemplateService.FindTemplates(r.Context())
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Server) handleTemplateSave(w http.ResponseWriter, r *http.Request) {
	var tmpl harvest.Template
	if err := decodeJSON(w, r, &tmpl); err != nil {
		s.Error(w, r, err)
		return
	}

	if s.Extractor != nil {
		if err := s.Extractor.Validate(tmpl.Rules); err != nil {
			s.Error(w, r, err)
			return
		}
	}
	if err := s.TemplateService.SaveTemplate(r.Context(), &tmpl); err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &tmpl)
}

func (s *Server) handleTemplateShow(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.TemplateService.FindTemplateByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	var filter harvest.RunFilter
	q := r.URL.Query()
	if v := q.Get("template"); v != "" {
		filter.TemplateName = &v
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		s.Error(w, r, harvest.Errorf(harvest.EINVALID, "invalid limit"))
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		s.Error(w, r, harvest.Errorf(harvest.EINVALID, "invalid offset"))
		return
	}

	runs, err := s.RunService.FindRuns(r.Context(), filter)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunShow(w http.ResponseWriter, r *http.Request) {
	run, err := s.RunService.FindRunByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Error writes err as a JSON error envelope. Internal errors are logged and
// their details are not sent to the client.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, message := harvest.ErrorCode(err), harvest.ErrorMessage(err)
	if code == harvest.EINTERNAL {
		s.Logger.Error("http error",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	writeJSON(w, ErrorStatusCode(code), errorResponse{Error: errorBody{Code: code, Message: message}})
}

// ErrorStatusCode returns the HTTP status for an application error code.
func ErrorStatusCode(code string) int {
	switch code {
	case harvest.EINVALID, harvest.ERULE, harvest.EFORMAT:
		return http.StatusBadRequest
	case harvest.ENOTFOUND:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return harvest.Errorf(harvest.EINVALID, "request body required")
		}
		if harvest.ErrorCode(err) != harvest.EINTERNAL {
			return err
		}
		return harvest.Errorf(harvest.EINVALID, "invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}
