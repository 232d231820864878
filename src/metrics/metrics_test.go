package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBool(t *testing.T) {
	assert.Equal(t, 1.0, Bool(true))
	assert.Equal(t, 0.0, Bool(false))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(OperatorActions.WithLabelValues("recover"))
	OperatorActions.WithLabelValues("recover").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OperatorActions.WithLabelValues("recover")))

	Stability.WithLabelValues("voltage").Set(92.5)
	assert.Equal(t, 92.5, testutil.ToFloat64(Stability.WithLabelValues("voltage")))
}
