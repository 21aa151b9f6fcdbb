package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	for _, tc := range []struct {
		level string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	} {
		l, err := New(tc.level, "json")
		require.NoError(t, err, tc.level)
		assert.True(t, l.Core().Enabled(tc.want), tc.level)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(tc.want-1), tc.level)
		}
	}
}

func TestNew_RejectsUnknown(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
