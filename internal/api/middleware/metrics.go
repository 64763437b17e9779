// metrics.go — Prometheus-метрики HTTP API.
// Лейбл path — шаблон маршрута chi, а не сырой путь: id треков
// и пользователей не попадают в кардинальность.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_http_requests_total",
			Help: "Общее количество HTTP-запросов к Catalog Service",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Catalog Service в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_http_response_bytes_total",
			Help: "Объём тел HTTP-ответов Catalog Service в байтах",
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает middleware сбора метрик.
// Подключается через Use на chi-роутере: шаблон маршрута известен
// только после обработки запроса.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			route := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(m.Code)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(m.Duration.Seconds())
			httpResponseBytes.WithLabelValues(r.Method, route).Add(float64(m.Written))
		})
	}
}
