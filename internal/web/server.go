package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"atelier/internal/format"
	"atelier/internal/model"
	"atelier/internal/routes"
	"atelier/internal/store"

	"go.uber.org/zap"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

type ServerConfig struct {
	Addr      string
	Dir       string
	Workspace string
	ActorID   string

	// DuplicateTimeout bounds each duplicate/undo call a workflow issues.
	DuplicateTimeout time.Duration

	Logger *zap.Logger
}

type Server struct {
	mu   sync.RWMutex
	cfg  ServerConfig
	tmpl *template.Template
	log  *zap.Logger

	bc        *resourceBroadcaster
	workflows *workflowRegistry
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	cfg.Workspace = strings.TrimSpace(cfg.Workspace)
	cfg.ActorID = strings.TrimSpace(cfg.ActorID)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Dir == "" {
		return nil, errors.New("web: dir is empty")
	}
	if cfg.ActorID == "" {
		cfg.ActorID = "act-web"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	tmpl, err := template.New("base").Funcs(templateFuncs()).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	srv := &Server{cfg: cfg, tmpl: tmpl, log: cfg.Logger.Named("web")}
	srv.bc = newResourceBroadcaster(srv.store(), srv.log)
	srv.workflows = newWorkflowRegistry(srv)
	go srv.bc.watchLoop()
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) store() store.Store {
	cfg := s.cfgSnapshot()
	return store.Store{Dir: cfg.Dir, Logger: cfg.Logger}
}

func (s *Server) actorID() string { return s.cfgSnapshot().ActorID }

// Close stops background watchers and aborts in-flight workflow calls.
func (s *Server) Close() {
	s.bc.Stop()
	s.workflows.resetAll()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /static/app.css", s.handleAppCSS)
	mux.HandleFunc("GET /static/app.js", s.handleAppJS)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /admin", s.handleDashboard)
	mux.HandleFunc("GET /admin/events", s.handleDashboardEvents)

	s.registerResourceRoutes(mux)
	return s.withRequestLog(mux)
}

type resourceHandler func(w http.ResponseWriter, r *http.Request, res model.Resource)

// registerResourceRoutes mounts every named admin route plus the per-resource
// stream, preview and workflow endpoints.
func (s *Server) registerResourceRoutes(mux *http.ServeMux) {
	byAction := map[routes.Action]resourceHandler{
		routes.Index:     s.handleList,
		routes.New:       s.handleNew,
		routes.Store:     s.handleCreate,
		routes.Edit:      s.handleEdit,
		routes.Update:    s.handleUpdate,
		routes.Destroy:   s.handleDestroy,
		routes.Duplicate: s.handleDuplicate,
		routes.Move:      s.handleMove,
	}
	bind := func(res model.Resource, h resourceHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { h(w, r, res) }
	}
	for _, rt := range routes.All() {
		res, ok := model.FindResource(rt.Resource)
		h := byAction[rt.Action]
		if !ok || h == nil {
			continue
		}
		mux.HandleFunc(rt.Method+" "+rt.Path, bind(res, h))
	}
	for _, res := range model.Resources() {
		base := routes.Prefix + "/" + res.Name
		mux.HandleFunc("GET "+base+"/events", bind(res, s.handleListEvents))
		mux.HandleFunc("POST "+base+"/preview", bind(res, s.handlePreview))
		mux.HandleFunc("POST "+base+"/workflow", bind(res, s.handleWorkflow))
	}
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"trim":     strings.TrimSpace,
		"markdown": renderMarkdownHTML,
		"money":    format.Money,
		"routeURL": func(name string, id int64) string {
			u, err := routes.URL(name, id)
			if err != nil {
				return "#"
			}
			return u
		},
		"listURL": routes.ListURL,
	}
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	ref := strings.TrimSpace(r.Header.Get("Referer"))
	if ref != "" {
		http.Redirect(w, r, ref, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

func (s *Server) handleAppJS(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, "static/app.js", "application/javascript; charset=utf-8")
}

func (s *Server) handleAppCSS(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, "static/app.css", "text/css; charset=utf-8")
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name, contentType string) {
	b, err := assetsFS.ReadFile(name)
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, routes.Prefix, http.StatusSeeOther)
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// Serve runs the server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.Addr()))
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close()
		err := hs.Shutdown(shutdownCtx)
		<-errCh
		return err
	}
}
