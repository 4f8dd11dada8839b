package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIncidentStats(t *testing.T) {
	RecordIncidentStats(IncidentSnapshot{
		Total:       7,
		Open:        3,
		Closed:      2,
		MTTAMinutes: 12.5,
		MTTRMinutes: 95.25,
		BreachRate:  50,
	})

	assert.Equal(t, 7.0, testutil.ToFloat64(Incidents.WithLabelValues("total")))
	assert.Equal(t, 3.0, testutil.ToFloat64(Incidents.WithLabelValues("open")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Incidents.WithLabelValues("closed")))
	assert.Equal(t, 12.5, testutil.ToFloat64(IncidentMTTAMinutes))
	assert.Equal(t, 95.25, testutil.ToFloat64(IncidentMTTRMinutes))
	assert.Equal(t, 50.0, testutil.ToFloat64(IncidentBreachRate))
}
