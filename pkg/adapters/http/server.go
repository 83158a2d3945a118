package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/internal/presentation/graph"
	"github.com/aretw0/sight/pkg/app"
	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/data"
	"github.com/aretw0/sight/pkg/service"
)

// Manager is the read side of an application manager.
type Manager interface {
	ID() string
	Config() *appconfig.Config
	State() app.State
	Services() []service.Service
	StartedServices() []service.Service
	Objects() []string
	DeferredObjects() map[string]bool
	Object(uid string) data.Object
}

var _ Manager = (*app.Manager)(nil)

// Server serves the admin API of one running configuration.
type Server struct {
	Context  *app.Context
	Manager  Manager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the metrics source of /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the logger of request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	ID       string          `json:"id"`
	State    app.State       `json:"state"`
	Services int             `json:"services"`
	Deferred map[string]bool `json:"deferred"`
}

// ServiceResponse describes a created service.
type ServiceResponse struct {
	UID      string            `json:"uid"`
	Type     string            `json:"type"`
	Started  bool              `json:"started"`
	Worker   string            `json:"worker,omitempty"`
	Bindings []service.Binding `json:"bindings"`
}

// ObjectResponse describes an object of the configuration.
type ObjectResponse struct {
	UID       string `json:"uid"`
	Classname string `json:"classname,omitempty"`
	Deferred  bool   `json:"deferred"`
	Bound     bool   `json:"bound"`
	Value     any    `json:"value,omitempty"`
}

// NewHandler creates the admin HTTP handler of m.
func NewHandler(actx *app.Context, m Manager, opts ...Option) http.Handler {
	s := &Server{
		Context:  actx,
		Manager:  m,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/state", s.GetState)
	r.Get("/channels", s.GetChannels)
	r.Get("/services", s.ListServices)
	r.Get("/services/{uid}", s.GetService)
	r.Post("/services/{uid}/slots/{key}", s.RunSlot)
	r.Get("/objects", s.ListObjects)
	r.Get("/graph", s.GetGraph)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StateResponse{
		ID:       s.Manager.ID(),
		State:    s.Manager.State(),
		Services: len(s.Manager.Services()),
		Deferred: s.Manager.DeferredObjects(),
	})
}

// GetChannels handles GET /channels.
func (s *Server) GetChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.Context.Proxy.Channels()
	if channels == nil {
		channels = []com.ChannelInfo{}
	}
	s.writeJSON(w, http.StatusOK, channels)
}

func describe(srv service.Service) ServiceResponse {
	resp := ServiceResponse{
		UID:      srv.ID(),
		Type:     srv.Type(),
		Started:  srv.Started(),
		Bindings: srv.Bindings(),
	}
	if w := srv.Worker(); w != nil {
		resp.Worker = w.Name()
	}
	return resp
}

// ListServices handles GET /services.
func (s *Server) ListServices(w http.ResponseWriter, _ *http.Request) {
	services := s.Manager.Services()
	out := make([]ServiceResponse, 0, len(services))
	for _, srv := range services {
		out = append(out, describe(srv))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) service(uid string) service.Service {
	for _, srv := range s.Manager.Services() {
		if srv.ID() == uid {
			return srv
		}
	}
	return nil
}

// GetService handles GET /services/{uid}.
func (s *Server) GetService(w http.ResponseWriter, r *http.Request) {
	srv := s.service(chi.URLParam(r, "uid"))
	if srv == nil {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, describe(srv))
}

// RunSlot handles POST /services/{uid}/slots/{key}. The slot is queued on the service
// worker without arguments.
func (s *Server) RunSlot(w http.ResponseWriter, r *http.Request) {
	uid, key := chi.URLParam(r, "uid"), chi.URLParam(r, "key")
	srv := s.service(uid)
	if srv == nil {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	slot := srv.Slots().Slot(key)
	if slot == nil {
		http.Error(w, "slot not found", http.StatusNotFound)
		return
	}
	if _, err := slot.AsyncRun(); err != nil {
		status := http.StatusConflict
		if errors.Is(err, com.ErrBadRun) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("slot run rejected", "service", uid, "slot", key, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"service": uid, "slot": key})
}

func objectResponse(uid string, obj data.Object) ObjectResponse {
	resp := ObjectResponse{UID: uid, Bound: obj != nil}
	if obj == nil {
		return resp
	}
	resp.Classname = obj.Classname()
	if v, ok := obj.(data.Valuer); ok {
		resp.Value = v.Any()
	}
	return resp
}

// ListObjects handles GET /objects: created objects in declaration order, then the deferred
// ones.
func (s *Server) ListObjects(w http.ResponseWriter, _ *http.Request) {
	uids := s.Manager.Objects()
	deferred := s.Manager.DeferredObjects()
	out := make([]ObjectResponse, 0, len(uids)+len(deferred))
	for _, uid := range uids {
		out = append(out, objectResponse(uid, s.Manager.Object(uid)))
	}
	for _, uid := range slices.Sorted(maps.Keys(deferred)) {
		resp := objectResponse(uid, s.Manager.Object(uid))
		resp.Deferred = true
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetGraph handles GET /graph: the Mermaid flowchart of the configuration, with started
// services and bound deferred objects highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, _ *http.Request) {
	overlay := &graph.GraphOverlay{}
	for _, srv := range s.Manager.StartedServices() {
		overlay.StartedServices = append(overlay.StartedServices, srv.ID())
	}
	deferred := s.Manager.DeferredObjects()
	for _, uid := range slices.Sorted(maps.Keys(deferred)) {
		if deferred[uid] {
			overlay.BoundObjects = append(overlay.BoundObjects, uid)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, graph.GenerateMermaid(s.Manager.Config(), overlay)); err != nil {
		s.logger.Error("response write failed", "error", err)
	}
}
