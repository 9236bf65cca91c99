package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", &buf, false)
	require.NoError(t, err)

	log.Info("丢弃")
	log.Warn("帧识别失败", zap.String("input", "a.mp4"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "帧识别失败", rec["msg"])
	assert.Equal(t, "a.mp4", rec["input"])
}

func TestNew_DefaultAndInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", &buf, true)
	require.NoError(t, err)
	log.Debug("丢弃")
	log.Info("保留")
	assert.NotContains(t, buf.String(), "丢弃")
	assert.Contains(t, buf.String(), "保留")

	_, err = New("loud", &buf, false)
	assert.Error(t, err)
}
