// Package features aggregates the observation log into one numeric
// behavior vector per source address.
package features

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// MinObservations is the number of observations a source needs to get a row.
const MinObservations = 2

// SourceGroup is the time-ordered slice of observations sent by one address.
type SourceGroup struct {
	SrcAddr      string
	Observations []domain.Observation
}

// GroupBySource partitions log by source address, keeping only sources with
// at least minCount observations. Groups come back in ascending address order and
// each group is stably sorted by timestamp.
func GroupBySource(log []domain.Observation, minCount int) []SourceGroup {
	bySrc := make(map[string][]domain.Observation)
	for _, o := range log {
		bySrc[o.SrcAddr] = append(bySrc[o.SrcAddr], o)
	}

	groups := make([]SourceGroup, 0, len(bySrc))
	for src, obs := range bySrc {
		if len(obs) < minCount {
			continue
		}
		slices.SortStableFunc(obs, func(a, b domain.Observation) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		groups = append(groups, SourceGroup{SrcAddr: src, Observations: obs})
	}
	slices.SortFunc(groups, func(a, b SourceGroup) int {
		return cmp.Compare(a.SrcAddr, b.SrcAddr)
	})
	return groups
}

// InterArrivals returns the gaps in seconds between consecutive observations.
// With leadingZero the first entry is 0 and the result has one value per
// observation; without it there are len(obs)-1 values.
func InterArrivals(obs []domain.Observation, leadingZero bool) []float64 {
	if len(obs) == 0 {
		return nil
	}
	deltas := make([]float64, 0, len(obs))
	if leadingZero {
		deltas = append(deltas, 0)
	}
	for i := 1; i < len(obs); i++ {
		deltas = append(deltas, obs[i].Timestamp.Sub(obs[i-1].Timestamp).Seconds())
	}
	return deltas
}

// Extract builds the feature rows for every eligible source. The result is
// deterministic for a given log.
func Extract(log []domain.Observation) []domain.FeatureVector {
	groups := GroupBySource(log, MinObservations)
	rows := make([]domain.FeatureVector, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, extractOne(g))
	}
	return rows
}

func extractOne(g SourceGroup) domain.FeatureVector {
	obs := g.Observations
	n := float64(len(obs))

	deltas := InterArrivals(obs, true)

	destinations := make(map[string]struct{})
	hours := make([]float64, 0, len(obs))
	var suspicious, sipCount, rtpCount, invites, registers, byes float64
	for _, o := range obs {
		destinations[o.DstAddr] = struct{}{}
		hours = append(hours, float64(o.Timestamp.Hour()))
		if o.Suspicious {
			suspicious++
		}
		switch o.Kind {
		case domain.KindSIP:
			sipCount++
			switch o.Method() {
			case domain.MethodInvite:
				invites++
			case domain.MethodRegister:
				registers++
			case domain.MethodBye:
				byes++
			}
		case domain.KindRTP:
			rtpCount++
		}
	}

	span := obs[len(obs)-1].Timestamp.Sub(obs[0].Timestamp).Seconds()
	unique := float64(len(destinations))

	fv := domain.FeatureVector{
		SrcAddr:            g.SrcAddr,
		TotalPackets:       n,
		UniqueDestinations: unique,
		AvgInterArrival:    stat.Mean(deltas, nil),
		StdInterArrival:    stat.StdDev(deltas, nil),
		MinInterArrival:    floats.Min(deltas),
		MaxInterArrival:    floats.Max(deltas),
		SuspiciousCount:    suspicious,
		SIPRatio:           sipCount / n,
		RTPRatio:           rtpCount / n,
		ActivityDuration:   span,
		AvgHour:            stat.Mean(hours, nil),
		HourVariance:       stat.Variance(hours, nil),
	}
	if sipCount > 0 {
		fv.InviteRatio = invites / sipCount
		fv.RegisterRatio = registers / sipCount
		fv.ByeRatio = byes / sipCount
	}
	if span > 0 {
		fv.PacketsPerMinute = n / (span / 60)
		fv.DestinationsPerHr = unique / (span / 3600)
	}

	return sanitize(fv)
}

// sanitize replaces NaN and infinities with 0.
func sanitize(fv domain.FeatureVector) domain.FeatureVector {
	fix := func(v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	for _, p := range []*float64{
		&fv.TotalPackets, &fv.UniqueDestinations,
		&fv.AvgInterArrival, &fv.StdInterArrival, &fv.MinInterArrival, &fv.MaxInterArrival,
		&fv.SuspiciousCount, &fv.SIPRatio, &fv.RTPRatio,
		&fv.InviteRatio, &fv.RegisterRatio, &fv.ByeRatio,
		&fv.ActivityDuration, &fv.PacketsPerMinute,
		&fv.AvgHour, &fv.HourVariance, &fv.DestinationsPerHr,
	} {
		fix(p)
	}
	return fv
}
