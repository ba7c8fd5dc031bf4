package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
)

func TestNewWithLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("warn", &buf)

	logger.Info("should be filtered")
	gt.V(t, buf.Len()).Equal(0)

	logger.Warn("should be written", "key", "value")
	gt.V(t, strings.Contains(buf.String(), "should be written")).Equal(true)
}

func TestContextCarrier(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("debug", &buf)

	ctx := logging.With(context.Background(), logger)
	got := logging.From(ctx)
	gt.V(t, got).Equal(logger)

	// Context without a logger falls back to the default
	fallback := logging.From(context.Background())
	gt.V(t, fallback).NotNil()
}

func TestSetDefault(t *testing.T) {
	orig := logging.Default()
	defer logging.SetDefault(orig)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logging.SetDefault(logger)
	gt.V(t, logging.Default()).Equal(logger)
}
