package narration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry — локальный реестр метрик пайплайна озвучки. Регистрируем в нем,
// а не в глобальном prometheus.DefaultRegistry, и отдаем через /metrics в main.
var Registry = prometheus.NewRegistry()

var (
	cacheHits = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "narration_cache_hits_total",
		Help: "Total number of synthesize calls answered from cache without any provider call.",
	})
	providerCalls = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "narration_provider_calls_total",
		Help: "Total number of per-chunk synthesis provider calls issued.",
	})
	synthesisFailed = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "narration_synthesis_failed_total",
		Help: "Total number of failed synthesize operations, partitioned by reason.",
	}, []string{"reason"})
	synthesisSucceeded = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "narration_synthesis_succeeded_total",
		Help: "Total number of successfully produced narration assets.",
	})
	// Дедупликации одновременных сборок одного отпечатка нет (задокументированный
	// базовый вариант), поэтому дубли хотя бы считаем — это прямые деньги провайдеру.
	duplicateBuilds = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "narration_duplicate_builds_total",
		Help: "Total number of syntheses whose result was already cached by a concurrent writer.",
	})
)

// MarkDuplicateBuild отмечает сборку, чей отпечаток успел закешировать
// конкурентный писатель. Вызывается слоем, который видит хранилище.
func MarkDuplicateBuild() { duplicateBuilds.Inc() }
