package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	RecordHTTPRequest("GET", "/plans/:id", 404, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/plans/:id", "4xx")))

	RecordNotification("ve_invitation", "push")
	RecordNotification("ve_invitation", "push")
	assert.Equal(t, 2.0, testutil.ToFloat64(notificationsDelivered.WithLabelValues("ve_invitation", "push")))

	RecordJobRun("acl_cleanup", time.Second, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(jobRuns.WithLabelValues("acl_cleanup", "false")))

	RecordTask("partner_notification", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(tasksRun.WithLabelValues("partner_notification", "true")))

	SetOnlineUsers(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(onlineUsers))
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vecollab_transport_online_users")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(503))
}
