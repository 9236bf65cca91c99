package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_TextfileContainsCounters(t *testing.T) {
	m := New()
	m.IncMedia("video", "processed")
	m.IncFrames()
	m.IncFrames()
	m.IncNumber("Valid")
	m.IncNumber("")
	m.ObserveOCR(120 * time.Millisecond)
	m.ObserveMedia("video", 2*time.Second)

	path := filepath.Join(t.TempDir(), "numscan.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `numscan_media_processed_total{kind="video",status="processed"} 1`)
	assert.Contains(t, s, "numscan_frames_total 2")
	assert.Contains(t, s, `numscan_numbers_total{status="Valid"} 1`)
	assert.Contains(t, s, `numscan_numbers_total{status="extracted"} 1`)
	assert.Contains(t, s, "numscan_ocr_duration_seconds_count 1")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncMedia("image", "failed")
	m.IncFrames()
	m.IncNumber("Invalid")
	m.ObserveOCR(time.Second)
	m.ObserveMedia("image", time.Second)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// 同一进程内多次 New 不应因重复注册而 panic。
	a, b := New(), New()
	a.IncFrames()

	fams, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, f := range fams {
		if f.GetName() == "numscan_frames_total" {
			assert.Zero(t, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
