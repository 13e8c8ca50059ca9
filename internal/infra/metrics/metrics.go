package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	FeedPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_pages_total",
		Help: "Запрошенные страницы ленты по виду фильтра",
	}, []string{"view"})

	FeedStaleResponses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_stale_responses_total",
		Help: "Ответы ленты, отброшенные как устаревшие",
	})

	FeedbackDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_decisions_total",
		Help: "Оценки, записанные в локальный журнал",
	}, []string{"decision"})

	RemoteWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_remote_write_failures_total",
		Help: "Неудачные фоновые записи на сервер",
	}, []string{"operation"})

	LedgerPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_pruned_days_total",
		Help: "Удалённые дневные журналы старше окна",
	})

	OutboxReplayTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_replay_total",
		Help: "Повторы отложенных записей по результату",
	}, []string{"result"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Входящие HTTP-запросы API",
	}, []string{"method", "route", "status"})

	FeedbackAcceptedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_feedback_total",
		Help: "Оценки, принятые сервером, с признаком дедупликации",
	}, []string{"action", "dedup"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		FeedPagesTotal,
		FeedStaleResponses,
		FeedbackDecisionsTotal,
		RemoteWriteFailures,
		LedgerPrunedTotal,
		OutboxReplayTotal,
		HTTPRequestsTotal,
		FeedbackAcceptedTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// Middleware считает входящие запросы по шаблону маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// IncFeedPage увеличивает счётчик страниц ленты.
func IncFeedPage(view string) {
	if view == "" {
		view = "all"
	}
	FeedPagesTotal.WithLabelValues(view).Inc()
}

// IncDecision увеличивает счётчик локальных оценок.
func IncDecision(decision string) {
	FeedbackDecisionsTotal.WithLabelValues(decision).Inc()
}

// IncRemoteFailure увеличивает счётчик неудачных фоновых записей.
func IncRemoteFailure(operation string) {
	RemoteWriteFailures.WithLabelValues(operation).Inc()
}

// IncFeedbackAccepted учитывает оценку, принятую сервером.
func IncFeedbackAccepted(action string, dedup bool) {
	FeedbackAcceptedTotal.WithLabelValues(action, strconv.FormatBool(dedup)).Inc()
}
