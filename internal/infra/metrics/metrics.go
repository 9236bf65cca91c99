// Package metrics 收集一次 run 的处理指标，并在结束时写成 node_exporter textfile。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 的所有方法对 nil 接收者安全（未启用指标时直接传 nil）。
type Metrics struct {
	reg *prometheus.Registry

	MediaProcessed *prometheus.CounterVec
	FramesTotal    prometheus.Counter
	NumbersTotal   *prometheus.CounterVec
	OCRDuration    prometheus.Histogram
	MediaDuration  *prometheus.HistogramVec
}

// New 使用独立 registry：CLI 进程内不与默认 registry 的 go/process 指标混在一起。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		MediaProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numscan_media_processed_total",
			Help: "Media items processed, by kind and status",
		}, []string{"kind", "status"}),
		FramesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "numscan_frames_total",
			Help: "Frames sent to text recognition",
		}),
		NumbersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "numscan_numbers_total",
			Help: "Distinct numbers recorded, by validation status",
		}, []string{"status"}),
		OCRDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "numscan_ocr_duration_seconds",
			Help:    "Duration of text recognition per frame",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		MediaDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "numscan_media_duration_seconds",
			Help:    "Duration of processing one media item",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"kind"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) IncMedia(kind, status string) {
	if m != nil {
		m.MediaProcessed.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) IncFrames() {
	if m != nil {
		m.FramesTotal.Inc()
	}
}

// IncNumber 只对新加入结果集的号码计数。
func (m *Metrics) IncNumber(status string) {
	if m != nil {
		if status == "" {
			status = "extracted"
		}
		m.NumbersTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveOCR(d time.Duration) {
	if m != nil {
		m.OCRDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveMedia(kind string, d time.Duration) {
	if m != nil {
		m.MediaDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// WriteTextfile 以 textfile collector 格式原子写出当前指标。
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
