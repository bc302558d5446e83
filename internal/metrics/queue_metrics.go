package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueMetrics содержит метрики очереди заказов и HTTP API.
// Все методы безопасны для nil-получателя.
type QueueMetrics struct {
	// Жизненный цикл обработки
	processingStarted   prometheus.Counter
	processingCompleted prometheus.Counter
	processingDropped   prometheus.Counter
	processingDuration  prometheus.Histogram
	inProgress          prometheus.Gauge

	ordersCreated prometheus.Counter
	ordersDeleted prometheus.Counter

	notifications *prometheus.CounterVec
	storageResets *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewQueueMetrics регистрирует метрики в глобальном реестре.
func NewQueueMetrics() *QueueMetrics {
	return NewQueueMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewQueueMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewQueueMetricsWithRegisterer(registerer prometheus.Registerer) *QueueMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &QueueMetrics{
		processingStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "queueapp_orders_processing_started_total",
			Help: "Total number of orders taken into processing",
		}),
		processingCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "queueapp_orders_processing_completed_total",
			Help: "Total number of orders that reached complete status",
		}),
		processingDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "queueapp_orders_processing_dropped_total",
			Help: "Total number of completions dropped because the order vanished",
		}),
		processingDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "queueapp_order_processing_duration_seconds",
			Help:    "Time between in_progress and complete",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 100},
		}),
		inProgress: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "queueapp_orders_in_progress",
			Help: "Number of orders currently being processed",
		}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "queueapp_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "queueapp_orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "queueapp_notifications_total",
			Help: "Notifications dispatched by kind and result",
		}, []string{"kind", "result"}),
		storageResets: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "queueapp_storage_resets_total",
			Help: "Storage resets by backend kind",
		}, []string{"backend"}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "queueapp_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "queueapp_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"route", "method"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordProcessingStarted отмечает перевод заказа в in_progress.
func (m *QueueMetrics) RecordProcessingStarted() {
	if m == nil {
		return
	}
	m.processingStarted.Inc()
	m.inProgress.Inc()
}

// RecordProcessingCompleted отмечает перевод заказа в complete.
func (m *QueueMetrics) RecordProcessingCompleted(duration time.Duration) {
	if m == nil {
		return
	}
	m.processingCompleted.Inc()
	m.inProgress.Dec()
	m.processingDuration.Observe(duration.Seconds())
}

// RecordProcessingDropped отмечает завершение, которое некуда записать.
func (m *QueueMetrics) RecordProcessingDropped() {
	if m == nil {
		return
	}
	m.processingDropped.Inc()
	m.inProgress.Dec()
}

func (m *QueueMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *QueueMetrics) RecordOrdersDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersDeleted.Add(float64(n))
}

// RecordNotification учитывает отправленное уведомление.
func (m *QueueMetrics) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *QueueMetrics) RecordStorageReset(backend string) {
	if m == nil {
		return
	}
	m.storageResets.WithLabelValues(backend).Inc()
}

// RecordHTTPRequest учитывает обработанный HTTP-запрос.
func (m *QueueMetrics) RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
