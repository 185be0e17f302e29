package logger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger(t *testing.T) {
	t.Helper()
	global = nil
	once = sync.Once{}
	t.Cleanup(func() {
		global = nil
		once = sync.Once{}
		_ = atomicLevel.UnmarshalText([]byte("info"))
	})
}

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{"json info", "info", "json", false, zapcore.InfoLevel},
		{"console debug", "debug", "console", false, zapcore.DebugLevel},
		{"unknown format falls back to json", "warn", "xml", false, zapcore.WarnLevel},
		{"bad level", "loud", "json", true, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger(t)
			err := Init(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, GetLevel())
			assert.NotNil(t, L())
		})
	}
}

func TestInit_OnlyOnce(t *testing.T) {
	resetLogger(t)
	require.NoError(t, Init("error", "json"))
	first := L()

	require.NoError(t, Init("debug", "console"))
	assert.Same(t, first, L())
	assert.Equal(t, zapcore.ErrorLevel, GetLevel())
}

func TestL_PanicsWithoutInit(t *testing.T) {
	resetLogger(t)
	assert.Panics(t, func() { L() })
	assert.NoError(t, Sync())
}

func TestFieldHelpers(t *testing.T) {
	resetLogger(t)
	core, logs := observer.New(zapcore.DebugLevel)
	global = zap.New(core)

	Warn("notification delivery failed",
		Recipient("s1"),
		NotificationID("n-1"),
		Channel("email"),
		Type("ASSIGNMENT_GRADED"),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s1", fields[KeyRecipient])
	assert.Equal(t, "n-1", fields[KeyNotificationID])
	assert.Equal(t, "email", fields[KeyChannel])
	assert.Equal(t, "ASSIGNMENT_GRADED", fields[KeyType])
}

func TestLevelFunctionsRespectLevel(t *testing.T) {
	resetLogger(t)
	require.NoError(t, atomicLevel.UnmarshalText([]byte("warn")))
	core, logs := observer.New(atomicLevel)
	global = zap.New(core)

	Debug("dropped")
	Info("dropped")
	Warn("kept")
	Error("kept")
	assert.Equal(t, 2, logs.Len())
}

func TestLevelHandler(t *testing.T) {
	resetLogger(t)
	require.NoError(t, Init("info", "json"))

	rec := httptest.NewRecorder()
	LevelHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/admin/log/level", strings.NewReader(`{"level":"warn"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zapcore.WarnLevel, GetLevel())

	rec = httptest.NewRecorder()
	LevelHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/log/level", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"level":"warn"`)
}
