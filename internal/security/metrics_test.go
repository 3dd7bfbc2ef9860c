package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestParseMetricsLabels(t *testing.T) {
	t.Setenv("ASKBOX_ENV", "staging")

	labels, err := ParseMetricsLabels("service=askbox,env=${ASKBOX_ENV}")
	require.NoError(t, err)
	require.Equal(t, "askbox", labels["service"])
	require.Equal(t, "staging", labels["env"])

	labels, err = ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)

	_, err = ParseMetricsLabels("no-equals")
	require.Error(t, err)

	_, err = ParseMetricsLabels("1bad=x")
	require.Error(t, err)
}

func TestMetricsMiddleware_LabelsByRoute(t *testing.T) {
	InitMetrics(nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/things/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	count := func(route, status string) float64 {
		return testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, route, status))
	}
	matched := count("/api/things/:id", "204")
	unmatched := count("unmatched", "404")

	for _, path := range []string{"/api/things/1", "/api/things/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, matched+2, count("/api/things/:id", "204"))
	require.Equal(t, unmatched+1, count("unmatched", "404"))
}
