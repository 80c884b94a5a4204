package common

import (
	"bytes"
	stderrors "errors"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
		"off":   logger.CRITICAL,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	require.Error(t, err)
	require.Error(t, InitLoggers("loud"))
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := output
	output = &buf
	defer func() { output = prev }()

	l := CreateLogger("vs")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden %d", 1)
	l.Warningf("shown %d", 2)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "WARN  | vs       | shown 2")

	require.Panics(t, func() { l.Panicf("boom") })
	output = io.Discard
}

func TestErrorMarks(t *testing.T) {
	err := Errorf(ErrNotFound, "branch %q", "dev")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrEngine)
	require.Equal(t, `branch "dev": not found`, err.Error())

	cause := errors.New("disk on fire")
	err = EngineErr(cause, "write batch (%d ops)", 3)
	require.ErrorIs(t, err, ErrEngine)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk on fire")

	// wrapping twice keeps a single mark
	err = EngineErr(err, "prune")
	require.ErrorIs(t, err, ErrEngine)
	require.Nil(t, EngineErr(nil, "noop"))

	err = Wrap(ErrInconsistent, cause, "ceiling")
	require.ErrorIs(t, err, ErrInconsistent)
	require.ErrorIs(t, err, cause)
}

func TestErrorMarksVisibleToStdlib(t *testing.T) {
	cause := stderrors.New("disk on fire")

	err := EngineErr(cause, "insert")
	require.True(t, stderrors.Is(err, ErrEngine))
	require.True(t, stderrors.Is(err, cause))
	require.True(t, errors.Is(err, ErrEngine))
	require.False(t, stderrors.Is(err, ErrNotFound))
	require.Equal(t, "insert: disk on fire", err.Error())

	// further context keeps the mark reachable
	err = errors.Wrap(EngineErr(err, "commit"), "branch create")
	require.True(t, stderrors.Is(err, ErrEngine))
	require.True(t, stderrors.Is(err, cause))

	err = Wrap(ErrInconsistent, cause, "ceiling")
	require.True(t, stderrors.Is(err, ErrInconsistent))
	require.False(t, stderrors.Is(err, ErrEngine))
}
