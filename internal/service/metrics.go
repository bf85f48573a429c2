package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indi_radio_ingest_items_total",
			Help: "Items handled by the ingestion pipelines, by pipeline and outcome.",
		},
		[]string{"pipeline", "outcome"},
	)

	catalogPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indi_radio_catalog_publish_failures_total",
			Help: "Catalog events that could not be published.",
		},
	)
)

const (
	pipelineAudio    = "audio"
	pipelineSchedule = "schedule"
)

// recordIngest 累加一次导入的结果。failed 由调用方给出，
// 音频报告的 Errors 里还包含重复文件的提示，它们已计入 skipped。
func recordIngest(pipeline string, report *IngestReport, failed int) {
	ingestItemsTotal.WithLabelValues(pipeline, "inserted").Add(float64(report.Inserted))
	ingestItemsTotal.WithLabelValues(pipeline, "skipped").Add(float64(report.Skipped))
	ingestItemsTotal.WithLabelValues(pipeline, "failed").Add(float64(failed))
}
