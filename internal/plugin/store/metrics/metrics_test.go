package metrics_test

import (
	"testing"

	storemetrics "github.com/chirino/askbox/internal/plugin/store/metrics"
	"github.com/chirino/askbox/internal/security"
	"github.com/chirino/askbox/internal/testutil/storetest"
	"github.com/chirino/askbox/internal/testutil/teststore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWrappedStoreContract(t *testing.T) {
	security.InitMetrics(nil)
	store, ctx := teststore.Open(t)
	storetest.Run(t, ctx, storemetrics.Wrap(store))

	assert.Positive(t, testutil.CollectAndCount(security.StoreLatency))
}
