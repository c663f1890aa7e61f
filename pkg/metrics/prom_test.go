package metrics

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "200"))
	failedBefore := testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "error"))

	ObserveRequest(http.MethodGet, http.StatusOK, 20*time.Millisecond)
	ObserveRequest(http.MethodGet, 0, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "200")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(Requests.WithLabelValues(http.MethodGet, "error")))
}

func TestWriteTextfile(t *testing.T) {
	Fallbacks.WithLabelValues("list_tables").Inc()

	path := filepath.Join(t.TempDir(), "supactl.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `supactl_fallbacks_total{operation="list_tables"}`)
}
