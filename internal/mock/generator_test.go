package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/services/classifier"
)

var t0 = time.Date(2024, 10, 5, 14, 0, 0, 0, time.UTC)

func classify(t *testing.T, f domain.Frame) domain.Observation {
	t.Helper()
	obs, err := classifier.New().Classify(f)
	require.NoError(t, err)
	require.NotNil(t, obs, "frame %s -> %s:%d not classified", f.SrcAddr, f.DstAddr, f.DstPort)
	return *obs
}

func TestGenerator_Call(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Seed: 7, RTPPackets: 10})
	frames := g.Call("192.168.1.10", "10.0.0.20", t0)
	require.Len(t, frames, 2*10+3)

	invite := classify(t, frames[0])
	assert.Equal(t, domain.KindSIP, invite.Kind)
	assert.Equal(t, domain.MethodInvite, invite.SIP.Method)
	assert.Equal(t, "call-1@192.168.1.10", invite.SIP.CallID)
	assert.Contains(t, userAgents, invite.SIP.UserAgent)
	assert.Equal(t, t0, invite.Timestamp)

	ack := classify(t, frames[1])
	assert.Equal(t, domain.MethodAck, ack.SIP.Method)
	assert.Equal(t, "10.0.0.20", ack.SrcAddr)
	assert.Equal(t, invite.SIP.CallID, ack.SIP.CallID)

	var lastSeq uint16
	for i, f := range frames[2 : len(frames)-1] {
		obs := classify(t, f)
		require.Equal(t, domain.KindRTP, obs.Kind)
		assert.True(t, obs.RTP.HeaderValid)
		assert.Zero(t, obs.RTP.DstPort%2)
		assert.Len(t, f.Payload, 12+rtpSamples)
		if i >= 2 && i%2 == 0 {
			assert.Equal(t, lastSeq+1, obs.RTP.Sequence, "caller stream is sequential")
		}
		if i%2 == 0 {
			lastSeq = obs.RTP.Sequence
		}
	}

	bye := classify(t, frames[len(frames)-1])
	assert.Equal(t, domain.MethodBye, bye.SIP.Method)
	assert.Equal(t, t0.Add(300*time.Millisecond+10*rtpInterval), bye.Timestamp)

	for i := 1; i < len(frames); i++ {
		assert.False(t, frames[i].Timestamp.Before(frames[i-1].Timestamp))
	}
}

func TestGenerator_Attack(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Seed: 3, Registers: 4, Invites: 12})
	frames := g.Attack("10.0.0.50", t0)
	require.Len(t, frames, 16)

	for i, f := range frames {
		obs := classify(t, f)
		assert.Equal(t, "10.0.0.50", obs.SrcAddr)
		assert.Contains(t, LegitimateAddrs, obs.DstAddr)
		assert.Equal(t, botAgent, obs.SIP.UserAgent)
		if i < 4 {
			assert.Equal(t, domain.MethodRegister, obs.SIP.Method)
		} else {
			assert.Equal(t, domain.MethodInvite, obs.SIP.Method)
		}
	}
	assert.Equal(t, t0.Add(4*registerInterval+11*floodInterval), frames[15].Timestamp)
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(GeneratorOptions{Seed: 11, RTPPackets: 5, SuspiciousRate: 0.5})
	b := NewGenerator(GeneratorOptions{Seed: 11, RTPPackets: 5, SuspiciousRate: 0.5})
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Activity(t0), b.Activity(t0))
		assert.Equal(t, a.Gap(), b.Gap())
	}
}

func TestGenerator_SuspiciousRateBounds(t *testing.T) {
	legit := NewGenerator(GeneratorOptions{Seed: 1, RTPPackets: 2, SuspiciousRate: 0})
	attack := NewGenerator(GeneratorOptions{Seed: 1, SuspiciousRate: 1})
	for i := 0; i < 20; i++ {
		assert.Contains(t, LegitimateAddrs, legit.Activity(t0)[0].SrcAddr)
		assert.Contains(t, SuspiciousAddrs, attack.Activity(t0)[0].SrcAddr)
	}
}

func TestGenerator_Gap(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Seed: 5, MinGap: time.Second, MaxGap: 3 * time.Second})
	for i := 0; i < 100; i++ {
		gap := g.Gap()
		assert.GreaterOrEqual(t, gap, time.Second)
		assert.Less(t, gap, 3*time.Second)
	}

	fixed := NewGenerator(GeneratorOptions{MinGap: 2 * time.Second})
	assert.Equal(t, 2*time.Second, fixed.Gap())
}
