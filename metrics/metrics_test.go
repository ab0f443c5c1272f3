package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposedOnHandler(t *testing.T) {
	m := New()
	m.TransactionsProcessedTotal.WithLabelValues("0").Add(5)
	m.MempoolSize.WithLabelValues("0").Set(42)
	m.BlocksProducedTotal.WithLabelValues("0").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "transactions_processed_total"))
	assert.True(t, strings.Contains(body, `shard="0"`))
	assert.True(t, strings.Contains(body, "mempool_size"))
	assert.True(t, strings.Contains(body, "blocks_produced_total"))
}

func TestEachShardGetsIndependentLabel(t *testing.T) {
	m := New()
	m.MempoolSize.WithLabelValues("0").Set(10)
	m.MempoolSize.WithLabelValues("1").Set(20)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mempool_size{shard="0"} 10`))
	assert.True(t, strings.Contains(body, `mempool_size{shard="1"} 20`))
}
