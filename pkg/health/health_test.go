package health

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func getTestResponse(start time.Time, activityTimeout, successTimeout time.Duration, checkMonitoring bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h := NewHealthCheck(activityTimeout, successTimeout)
	if checkMonitoring {
		h.StartMonitoring()
	}
	h.lastActivity = start
	h.lastSuccessfulRun = start
	h.ServeHTTP(w, req)
	return w
}

func TestOkServeHTTP(t *testing.T) {
	w := getTestResponse(time.Now(), time.Second, time.Second, true)
	assert.Equal(t, 200, w.Code)
}

func TestFailTimeoutServeHTTP(t *testing.T) {
	w := getTestResponse(time.Now().Add(time.Second*-2), time.Second, time.Second, true)
	assert.Equal(t, 500, w.Code)
}

func TestMonitoringOffAfterTimeout(t *testing.T) {
	w := getTestResponse(time.Now().Add(time.Second*-2), time.Second, time.Second, false)
	assert.Equal(t, 200, w.Code)
}

func TestUpdateLastActivityClearsFailure(t *testing.T) {
	timeout := time.Second
	h := NewHealthCheck(timeout, timeout)
	h.StartMonitoring()
	h.lastActivity = time.Now().Add(timeout * -2)
	h.lastSuccessfulRun = time.Now().Add(timeout * 10)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, 500, w.Code)

	h.UpdateLastActivity(time.Now())
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
}

func TestUpdateLastSuccessfulRunAlsoCountsAsActivity(t *testing.T) {
	timeout := time.Second
	h := NewHealthCheck(timeout, timeout)
	h.StartMonitoring()
	h.lastActivity = time.Now().Add(timeout * -2)
	h.lastSuccessfulRun = time.Now().Add(timeout * -2)

	h.UpdateLastSuccessfulRun(time.Now())

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.True(t, h.lastActivity.After(h.lastSuccessfulRun.Add(-time.Millisecond)))
}

func TestUpdateDoesNotRewindFromTheFuture(t *testing.T) {
	h := NewHealthCheck(time.Second, time.Second)
	future := time.Now().Add(time.Hour)
	h.lastActivity = future
	h.UpdateLastActivity(time.Now())
	assert.Equal(t, future, h.lastActivity)
}
