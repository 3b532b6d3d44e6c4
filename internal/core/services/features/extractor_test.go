package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

var base = time.Date(2024, 2, 10, 10, 0, 0, 0, time.UTC)

func obs(src, dst string, kind domain.ObservationKind, method domain.SipMethod, at time.Time) domain.Observation {
	o := domain.Observation{Timestamp: at, Kind: kind, SrcAddr: src, DstAddr: dst}
	if kind == domain.KindSIP {
		o.SIP = &domain.SipFields{Method: method}
	} else {
		o.RTP = &domain.RtpFields{SrcPort: 20000, DstPort: 20002}
	}
	return o
}

func TestExtract_Eligibility(t *testing.T) {
	log := []domain.Observation{
		obs("10.0.0.9", "10.0.0.2", domain.KindSIP, domain.MethodInvite, base),
		obs("10.0.0.1", "10.0.0.2", domain.KindSIP, domain.MethodInvite, base),
		obs("10.0.0.1", "10.0.0.3", domain.KindRTP, "", base.Add(time.Second)),
		obs("10.0.0.5", "10.0.0.3", domain.KindRTP, "", base),
		obs("10.0.0.5", "10.0.0.3", domain.KindRTP, "", base.Add(time.Minute)),
		obs("10.0.0.5", "10.0.0.3", domain.KindRTP, "", base.Add(2*time.Minute)),
	}

	rows := Extract(log)
	require.Len(t, rows, 2, "one row per source with at least two observations")
	assert.Equal(t, "10.0.0.1", rows[0].SrcAddr)
	assert.Equal(t, "10.0.0.5", rows[1].SrcAddr)
}

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract([]domain.Observation{obs("a", "b", domain.KindRTP, "", base)}))
}

func TestExtract_Values(t *testing.T) {
	log := []domain.Observation{
		// deliberately out of order
		obs("10.0.0.1", "10.0.0.3", domain.KindSIP, domain.MethodBye, base.Add(4*time.Second)),
		obs("10.0.0.1", "10.0.0.2", domain.KindSIP, domain.MethodInvite, base),
		obs("10.0.0.1", "10.0.0.2", domain.KindRTP, "", base.Add(time.Second)),
		obs("10.0.0.1", "10.0.0.2", domain.KindSIP, domain.MethodRegister, base.Add(2*time.Second)),
	}
	log[0].Suspicious = true

	rows := Extract(log)
	require.Len(t, rows, 1)
	r := rows[0]

	// deltas: 0, 1, 1, 2
	assert.Equal(t, 4.0, r.TotalPackets)
	assert.Equal(t, 2.0, r.UniqueDestinations)
	assert.InDelta(t, 1.0, r.AvgInterArrival, 1e-9)
	assert.InDelta(t, 0.816496580927726, r.StdInterArrival, 1e-9)
	assert.Equal(t, 0.0, r.MinInterArrival)
	assert.Equal(t, 2.0, r.MaxInterArrival)
	assert.Equal(t, 1.0, r.SuspiciousCount)
	assert.InDelta(t, 0.75, r.SIPRatio, 1e-9)
	assert.InDelta(t, 0.25, r.RTPRatio, 1e-9)
	assert.InDelta(t, 1.0/3, r.InviteRatio, 1e-9)
	assert.InDelta(t, 1.0/3, r.RegisterRatio, 1e-9)
	assert.InDelta(t, 1.0/3, r.ByeRatio, 1e-9)
	assert.Equal(t, 4.0, r.ActivityDuration)
	assert.InDelta(t, 60.0, r.PacketsPerMinute, 1e-9)
	assert.Equal(t, 10.0, r.AvgHour)
	assert.Equal(t, 0.0, r.HourVariance)
	assert.InDelta(t, 1800.0, r.DestinationsPerHr, 1e-9)
}

func TestExtract_ZeroSpanIsFinite(t *testing.T) {
	log := []domain.Observation{
		obs("10.0.0.1", "10.0.0.2", domain.KindRTP, "", base),
		obs("10.0.0.1", "10.0.0.2", domain.KindRTP, "", base),
	}
	rows := Extract(log)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 0.0, r.PacketsPerMinute)
	assert.Equal(t, 0.0, r.DestinationsPerHr)
	assert.Equal(t, 0.0, r.InviteRatio, "no SIP observations")
	for i, v := range r.Values() {
		assert.False(t, math.IsNaN(v), "column %s is NaN", domain.FeatureColumns[i])
	}
}

func TestExtract_Deterministic(t *testing.T) {
	var log []domain.Observation
	for i := 0; i < 40; i++ {
		src := []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"}[i%3]
		log = append(log, obs(src, "10.9.9.9", domain.KindSIP, domain.MethodInvite, base.Add(time.Duration(i)*time.Second)))
	}
	first := Extract(log)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Extract(log))
	}
}

func TestInterArrivals(t *testing.T) {
	o := []domain.Observation{
		{Timestamp: base},
		{Timestamp: base.Add(2 * time.Second)},
		{Timestamp: base.Add(3 * time.Second)},
	}
	assert.Equal(t, []float64{0, 2, 1}, InterArrivals(o, true))
	assert.Equal(t, []float64{2, 1}, InterArrivals(o, false))
	assert.Nil(t, InterArrivals(nil, true))
}

func TestGroupBySource_StableOrder(t *testing.T) {
	a := obs("10.0.0.1", "first", domain.KindRTP, "", base)
	b := obs("10.0.0.1", "second", domain.KindRTP, "", base)
	groups := GroupBySource([]domain.Observation{a, b}, 1)
	require.Len(t, groups, 1)
	assert.Equal(t, "first", groups[0].Observations[0].DstAddr)
	assert.Equal(t, "second", groups[0].Observations[1].DstAddr)
}
