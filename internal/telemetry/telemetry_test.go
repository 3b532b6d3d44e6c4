package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initTracer(&buf, "test")
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "unit-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "unit-span")
}

func TestInitMetrics_Idempotent(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(FramesDropped.WithLabelValues("queue_full"))
	FramesDropped.WithLabelValues("queue_full").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FramesDropped.WithLabelValues("queue_full")))
}
