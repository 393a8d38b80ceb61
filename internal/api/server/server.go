package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/api/handler"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra/auth"
)

// Handlers обработчики бизнес-доменов.
type Handlers struct {
	Ledger   *handler.LedgerHandler   // /v1/balances, /v1/operations, /v1/sponsored-contents
	Content  *handler.ContentHandler  // /v1/contents
	User     *handler.UserHandler     // /v1/users
	Firewall *handler.FirewallHandler // /v1/events, /v1/firewall
}

type Server struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *infra.Metrics

	// Проверка RS256 токенов сессии. nil: все запросы анонимные.
	authValidator auth.TokenValidator
	h             Handlers
	// /metrics, обычно promhttp.HandlerFor(reg, ...)
	metricsHandler http.Handler
	// Готовность зависимостей для /health
	ready func() error
	// IP клиента из заголовков прокси. Выключено: только RemoteAddr.
	trustProxy bool
}

type Option func(*Server)

// WithTrustedProxy включает middleware.RealIP. Без прокси перед сервисом клиент
// подделает X-Forwarded-For и обойдет счетчики файрвола.
func WithTrustedProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

func New(logger *zap.Logger, metrics *infra.Metrics, validator auth.TokenValidator, h Handlers,
	metricsHandler http.Handler, ready func() error, opts ...Option,
) *Server {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.Named("api"),
		metrics:        metrics,
		authValidator:  validator,
		h:              h,
		metricsHandler: metricsHandler,
		ready:          ready,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	// --- 2. Служебные роуты ---
	r.Get("/health", s.health)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	// --- 3. API: токен необязателен, доступ решает Authorizer ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Post("/users", s.h.User.Create)
		r.Get("/users/{id}", s.h.User.Get)

		r.Route("/contents", func(r chi.Router) {
			r.Post("/", s.h.Content.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Content.Get)
				r.Get("/tabcoins", s.h.Ledger.ContentTabCoins)
				r.Post("/tabcoins", s.h.Ledger.Rate)
			})
		})

		r.Post("/sponsored-contents", s.h.Ledger.Sponsor)

		r.Route("/balances/{kind}/{id}", func(r chi.Router) {
			r.Get("/", s.h.Ledger.Balance)
			r.Get("/operations", s.h.Ledger.History)
		})
		r.Post("/operations/{kind}/{id}/undo", s.h.Ledger.Undo)

		// Очередь ревью файрвола
		r.Get("/events", s.h.Firewall.ListEvents)
		r.Get("/events/{id}", s.h.Firewall.GetEvent)
		r.Post("/firewall/{id}/review", s.h.Firewall.Review)
	})
}

// observe пишет латентность по шаблону роута, а не по сырому пути.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
