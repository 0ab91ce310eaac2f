package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/pkg/config"
)

// lastEntry decodes the last JSON line written to buf
func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewForOutputLevelIsPerInstance(t *testing.T) {
	before := zerolog.GlobalLevel()

	var buf bytes.Buffer
	log := NewForOutput(&buf, &config.Config{Env: "test", LogLevel: "warn", LogFormat: "json"})
	assert.Equal(t, zerolog.WarnLevel, log.Level())
	assert.Equal(t, before, zerolog.GlobalLevel(), "global level untouched")

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "strikegate", entry["service"])
	assert.Equal(t, "test", entry["env"])
}

func TestNewForOutputConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewForOutput(&buf, &config.Config{LogLevel: "info", LogFormat: "console"})
	log.Info("gate ready")

	out := buf.String()
	assert.Contains(t, out, "gate ready")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))), "console output is not JSON")
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test")

	for level, emit := range map[string]func(string){
		"debug": log.Debug,
		"info":  log.Info,
		"warn":  log.Warn,
		"error": log.Error,
	} {
		buf.Reset()
		emit("msg-" + level)
		entry := lastEntry(t, &buf)
		assert.Equal(t, level, entry["level"])
		assert.Equal(t, "msg-"+level, entry["message"])
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test")

	log.WithField("policy_id", "default").
		WithFields(map[string]interface{}{"checks": 7, "market": "static"}).
		WithError(errors.New("redis down")).
		Warn("degraded")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "default", entry["policy_id"])
	assert.Equal(t, float64(7), entry["checks"])
	assert.Equal(t, "static", entry["market"])
	assert.Equal(t, "redis down", entry["error"])
}

func TestWithRunAndCheck(t *testing.T) {
	var buf bytes.Buffer
	run := NewWithWriter(&buf, "test").WithRun("run-1", 42, "XBTUSD")

	run.WithCheck(3, "liquidity").Warn("Check timed out")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, float64(42), entry["strike_id"])
	assert.Equal(t, "XBTUSD", entry["symbol"])
	assert.Equal(t, float64(3), entry["check_id"])
	assert.Equal(t, "liquidity", entry["check"])

	// 파생 로거는 부모를 바꾸지 않음
	run.Info("Strike validated")
	entry = lastEntry(t, &buf)
	assert.NotContains(t, entry, "check")
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithRun("r", 1, "X").WithCheck(1, "c").Error("ignored")
	})
}
