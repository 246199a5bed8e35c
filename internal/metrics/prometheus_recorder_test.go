package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveWatchDuration(150*time.Millisecond, OutcomeFailure)
	pr.IncWatchOutcome(OutcomeFailure, "build marked as failed")
	pr.AddPolls(3)
	pr.AddPolls(-1)
	pr.IncToolResolution("gradle", false)
	pr.SetActiveSessions(1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)

	require.InDelta(t, 3, testutil.ToFloat64(pr.polls), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(pr.watchOutcomes.WithLabelValues("failure", "build marked as failed")), 0.001)
	require.InDelta(t, 1, testutil.ToFloat64(pr.toolResolution.WithLabelValues("gradle", "missing")), 0.001)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.AddPolls(1)
	pr.IncWatchOutcome(OutcomeSuccess, "")
	pr.SetActiveSessions(0)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).AddPolls(2)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "withgradle_log_polls_total"))
}

func TestNewRegistryExposesBuildInfo(t *testing.T) {
	reg := NewRegistry()

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "withgradle_build_info")
	require.Contains(t, names, "go_goroutines")
}
