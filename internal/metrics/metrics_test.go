package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/avatar3d"
)

func TestObserveFrame(t *testing.T) {
	frames := testutil.ToFloat64(FramesTotal)
	clamped := testutil.ToFloat64(ClampedFrames)

	ObserveFrame(avatar3d.Frame{}, time.Millisecond)
	ObserveFrame(avatar3d.Frame{Clamped: true}, time.Millisecond)

	assert.Equal(t, frames+2, testutil.ToFloat64(FramesTotal))
	assert.Equal(t, clamped+1, testutil.ToFloat64(ClampedFrames))
}

func TestHandler(t *testing.T) {
	Utterances.WithLabelValues(OutcomeStarted).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `facerig_utterances_total{outcome="started"}`)
	assert.Contains(t, string(body), "facerig_viewer_clients")
}
