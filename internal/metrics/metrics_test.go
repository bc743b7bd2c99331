package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusOK, Status(nil))
	assert.Equal(t, StatusFailed, Status(errors.New("boom")))
}

func TestFeedTriplesCounter(t *testing.T) {
	c := FeedTriplesTotal.WithLabelValues("testchain", "testproto", "1", StatusOK)
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
