package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики сервиса на собственном registry, чтобы несколько
// экземпляров (тесты) не конфликтовали в глобальной регистрации
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	StockRejections prometheus.Counter
}

func New() *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kassa",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kassa",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kassa",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kassa",
		Name:      "orders_cancelled_total",
		Help:      "Total number of orders cancelled.",
	})
	stockRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kassa",
		Name:      "stock_rejections_total",
		Help:      "Operations rejected for insufficient stock.",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(requests, latency, ordersCreated, ordersCancelled, stockRejections)

	return &Metrics{
		registry:        registry,
		Requests:        requests,
		LatencyMS:       latency,
		OrdersCreated:   ordersCreated,
		OrdersCancelled: ordersCancelled,
		StockRejections: stockRejections,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
