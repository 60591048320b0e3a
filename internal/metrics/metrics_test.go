package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCache(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("local", "hit"))
	ObserveCache("local", "hit")
	ObserveCache("local", "hit")
	assert.Equal(t, before+2, testutil.ToFloat64(CacheLookups.WithLabelValues("local", "hit")))
}
