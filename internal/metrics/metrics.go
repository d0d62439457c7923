// Package metrics expõe contadores e latências das operações de demanda.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa as métricas registradas em um registry próprio.
type Metrics struct {
	registry *prometheus.Registry

	// Resultado por operação do serviço: ok, validacao, nao_encontrada, proibido, interno
	Operations *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec

	// Requisições HTTP por rota e status
	Requests *prometheus.CounterVec

	// Arquivos órfãos removidos pela varredura
	OrphansRemoved prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_operacoes_total",
			Help: "Total de operações sobre demandas por resultado",
		}, []string{"operacao", "resultado"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demandas_operacao_duracao_segundos",
			Help:    "Duração das operações sobre demandas",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operacao"}),

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandas_http_requisicoes_total",
			Help: "Requisições HTTP por rota e status",
		}, []string{"metodo", "rota", "status"}),

		OrphansRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "demandas_arquivos_orfaos_removidos_total",
			Help: "Arquivos sem demanda removidos pela varredura",
		}),
	}
}

// ObserveOperation registra o resultado e a duração de uma operação.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) AddOrphansRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphansRemoved.Add(float64(n))
}

// Handler serve o registry no formato de exposição do Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
