package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Submission(OutcomeSaved)
	m.Submission(OutcomeSaved)
	m.Submission(OutcomeRejected)
	m.Notification(nil)
	m.Notification(errors.New("smtp down"))
	m.NotificationSkipped()
	m.ObserveAppend(15 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(OutcomeSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.appendLatency))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submission(OutcomeFailed)
		m.Notification(nil)
		m.NotificationSkipped()
		m.ObserveAppend(time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Submission(OutcomeSaved)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `contactsheet_submissions_total{outcome="saved"} 1`))
}
