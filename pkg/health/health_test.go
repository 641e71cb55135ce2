package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", func(ctx context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} })
	c.Register("redis", PingCheck(nil, StatusDegraded))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "not configured", report.Components["redis"].Message)

	c.Register("segments", PingCheck(func(ctx context.Context) error { return errors.New("unreadable") }, StatusDown))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", PingCheck(func(ctx context.Context) error { return nil }, StatusDown))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("kafka", PingCheck(func(ctx context.Context) error { return errors.New("no brokers") }, StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
