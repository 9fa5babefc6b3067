package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"

	_ "github.com/alphabot-ai/perch/docs" // swagger docs
	"github.com/alphabot-ai/perch/internal/avatar"
	"github.com/alphabot-ai/perch/internal/capability"
	"github.com/alphabot-ai/perch/internal/config"
	"github.com/alphabot-ai/perch/internal/metrics"
	"github.com/alphabot-ai/perch/internal/mint"
	"github.com/alphabot-ai/perch/internal/normalize"
	"github.com/alphabot-ai/perch/internal/notify"
	"github.com/alphabot-ai/perch/internal/rate"
	"github.com/alphabot-ai/perch/internal/store"
)

const maxBodyBytes = 256 << 10

// PageChecker confirms a normalized page exists on the site.
type PageChecker interface {
	PageExists(ctx context.Context, page string) bool
}

// Dispatcher queues admin alerts for new comments.
type Dispatcher interface {
	Dispatch(c notify.NewComment)
}

// AvatarSource resolves author avatars.
type AvatarSource interface {
	Image(ctx context.Context, authorID string) (avatar.Image, error)
}

// Deps are the collaborators of a Server. Checker, Notifier and Avatars are
// optional; Metrics defaults to a private registry.
type Deps struct {
	Store    store.Store
	Issuer   *capability.Issuer
	Engine   *mint.Engine
	Limiter  rate.Limiter
	Checker  PageChecker
	Notifier Dispatcher
	Avatars  AvatarSource
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

type Server struct {
	store     store.Store
	issuer    *capability.Issuer
	engine    *mint.Engine
	limiter   rate.Limiter
	checker   PageChecker
	notifier  Dispatcher
	avatars   AvatarSource
	metrics   *metrics.Metrics
	log       zerolog.Logger
	cfg       config.Config
	admins    map[string]struct{}
	templates *Templates
	assets    fs.FS
	handler   http.Handler
}

func NewServer(deps Deps, cfg config.Config) (*Server, error) {
	if deps.Store == nil || deps.Issuer == nil || deps.Engine == nil || deps.Limiter == nil {
		return nil, errors.New("httpapp: store, issuer, engine and limiter are required")
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	static, err := assets()
	if err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	admins := make(map[string]struct{}, len(cfg.Site.AdminEmails))
	for _, email := range cfg.Site.AdminEmails {
		admins[normalize.EmailHash(email)] = struct{}{}
	}

	s := &Server{
		store:     deps.Store,
		issuer:    deps.Issuer,
		engine:    deps.Engine,
		limiter:   deps.Limiter,
		checker:   deps.Checker,
		notifier:  deps.Notifier,
		avatars:   deps.Avatars,
		metrics:   deps.Metrics,
		log:       deps.Log,
		cfg:       cfg,
		admins:    admins,
		templates: tmpl,
		assets:    static,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", s.handleBase).Methods(http.MethodGet).Name("base")
	api.HandleFunc("/challenge/", s.handleChallenge).Methods(http.MethodPost).Name("challenge")
	api.HandleFunc("/comment/", s.handleComment).Methods(http.MethodPost).Name("comment")
	api.HandleFunc("/admin/moderate/{comment_id}/", s.handleModerate).Methods(http.MethodGet).Name("moderate")
	api.HandleFunc("/openapi.json", s.serveOpenAPIJSON).Methods(http.MethodGet).Name("openapi")

	r.HandleFunc("/page/comments/", s.handlePageComments).Methods(http.MethodGet).Name("page_comments")
	r.HandleFunc("/avatar/{author_id}", s.handleAvatar).Methods(http.MethodGet).Name("avatar")
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet).Name("health")

	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets)))).
		Methods(http.MethodGet, http.MethodHead).Name("assets")
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler).Methods(http.MethodGet).Name("swagger")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { notFound(w) })
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { methodNotAllowed(w) })

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Site.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         600,
	})
	return c.Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
			route = cur.GetName()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, rec.status, elapsed)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// handleBase godoc
//
//	@Summary		API root
//	@Description	Liveness of the API root
//	@Tags			Meta
//	@Produce		json
//	@Success		200	{object}	envelope	"reason welcome"
//	@Router			/api/ [get]
func (s *Server) handleBase(w http.ResponseWriter, r *http.Request) {
	writeReason(w, http.StatusOK, "welcome", nil)
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Report whether the store is reachable
//	@Tags			Meta
//	@Produce		json
//	@Success		200	{object}	envelope	"healthy"
//	@Failure		503	{object}	envelope	"unhealthy"
//	@Router			/healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeReason(w, http.StatusServiceUnavailable, "unhealthy", nil)
		return
	}
	writeReason(w, http.StatusOK, "healthy", nil)
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.internalError(w, err, "read openapi doc")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

func (s *Server) isAdmin(emailHash string) bool {
	_, ok := s.admins[emailHash]
	return ok
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if limit <= 0 {
		return true
	}
	key := fmt.Sprintf("%s:ip:%s", action, clientIP(r, s.cfg.Server.TrustProxy))
	if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

// clientIP is the peer address, or the hop appended by a trusted proxy.
// Earlier X-Forwarded-For entries are client supplied and ignored.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
				return last
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func readJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// envelope is the body of every API response.
type envelope struct {
	Reason string `json:"reason"`
	Data   any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeReason(w http.ResponseWriter, status int, reason string, data any) {
	writeJSON(w, status, envelope{Reason: reason, Data: data})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds() + 0.999)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeReason(w, http.StatusTooManyRequests, "rate_limited", map[string]int{"retry_after": secs})
}

func notFound(w http.ResponseWriter) {
	writeReason(w, http.StatusNotFound, "not_found", nil)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeReason(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}
