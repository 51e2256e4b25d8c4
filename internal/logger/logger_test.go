package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	t.Cleanup(func() { logger.SetLogLevel(logger.WarnLevel) })

	tests := []struct {
		name      string
		debug     bool
		verbose   bool
		wantInfo  bool
		wantDebug bool
	}{
		{"default warns only", false, false, false, false},
		{"verbose shows info", false, true, true, false},
		{"debug shows everything", true, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.InitWithWriter(&buf, tt.debug, tt.verbose, true)

			logger.Info().Msg("info-line")
			logger.Debug().Msg("debug-line")
			logger.Warn().Msg("warn-line")

			out := buf.String()
			assert.Contains(t, out, "warn-line")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info-line")))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug-line")))
		})
	}
}

func TestErrorWithCode(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.WarnLevel) })

	var buf bytes.Buffer
	log := logger.New(zerolog.New(&buf))

	err := errors.New().WithMessage(errors.ErrMainLoop, "cycle failed")
	log.ErrorWithCode(err).Msg("sink")

	assert.Contains(t, buf.String(), `"error_code":"main_loop_failed"`)
	assert.Contains(t, buf.String(), "cycle failed")
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().Warn().Str("k", "v").Msg("ignored")
	})
}
