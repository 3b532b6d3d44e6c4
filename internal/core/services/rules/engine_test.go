package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

func invite(src string, at time.Time) domain.Observation {
	return domain.Observation{
		Timestamp: at,
		Kind:      domain.KindSIP,
		SrcAddr:   src,
		DstAddr:   "10.1.1.1",
		SIP:       &domain.SipFields{Method: domain.MethodInvite},
	}
}

func rtpObs(src, dst string) domain.Observation {
	return domain.Observation{
		Kind:    domain.KindRTP,
		SrcAddr: src,
		DstAddr: dst,
		RTP:     &domain.RtpFields{SrcPort: 20000, DstPort: 20002},
	}
}

func TestEngine_Blacklist(t *testing.T) {
	e := NewDefaultEngine()

	ev := e.Evaluate(rtpObs("8.8.8.8", "10.0.0.50"), nil)
	require.NotNil(t, ev)
	assert.Equal(t, domain.CategorySuspiciousRTP, ev.Category)
	assert.Equal(t, "Blacklisted IP", ev.Reason)
	assert.NotEmpty(t, ev.ID)

	assert.Nil(t, e.Evaluate(rtpObs("8.8.8.8", "8.8.4.4"), nil))
}

func TestEngine_InviteFloodThreshold(t *testing.T) {
	e := NewDefaultEngine()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	var recent []domain.Observation
	for i := 0; i < 10; i++ {
		recent = append(recent, invite("1.2.3.4", base.Add(time.Duration(i)*time.Second)))
	}
	assert.Nil(t, e.Evaluate(invite("1.2.3.4", base), recent), "exactly 10 prior INVITEs is not a flood")

	recent = append(recent, invite("1.2.3.4", base))
	ev := e.Evaluate(invite("1.2.3.4", base), recent)
	require.NotNil(t, ev)
	assert.Equal(t, domain.CategorySuspiciousSIP, ev.Category)
	assert.Equal(t, domain.MethodInvite, ev.Method)
	assert.Equal(t, "Rapid INVITE requests", ev.Reason)
}

func TestEngine_InviteFloodWindow(t *testing.T) {
	e := NewDefaultEngine()
	var recent []domain.Observation
	for i := 0; i < 11; i++ {
		recent = append(recent, invite("1.2.3.4", time.Time{}))
	}
	// push the INVITEs out of the 50 entry window
	for i := 0; i < 45; i++ {
		recent = append(recent, rtpObs("5.5.5.5", "6.6.6.6"))
	}
	assert.Nil(t, e.Evaluate(invite("1.2.3.4", time.Time{}), recent))
}

func TestEngine_FloodOnlyForInvite(t *testing.T) {
	e := NewDefaultEngine()
	var recent []domain.Observation
	for i := 0; i < 20; i++ {
		recent = append(recent, invite("1.2.3.4", time.Time{}))
	}
	bye := domain.Observation{Kind: domain.KindSIP, SrcAddr: "1.2.3.4", DstAddr: "9.9.9.9",
		SIP: &domain.SipFields{Method: domain.MethodBye}}
	assert.Nil(t, e.Evaluate(bye, recent))
}

func TestEngine_CombinedReasons(t *testing.T) {
	e := NewDefaultEngine()
	var recent []domain.Observation
	for i := 0; i < 11; i++ {
		recent = append(recent, invite("192.168.1.100", time.Time{}))
	}
	ev := e.Evaluate(invite("192.168.1.100", time.Time{}), recent)
	require.NotNil(t, ev)
	assert.Equal(t, "Blacklisted IP; Rapid INVITE requests", ev.Reason)
}

type srcRule struct{ addr string }

func (r srcRule) Name() string { return "src" }
func (r srcRule) Evaluate(obs domain.Observation, _ []domain.Observation) (string, bool) {
	return "custom", obs.SrcAddr == r.addr
}

func TestEngine_AddRule(t *testing.T) {
	e := NewEngine(0)
	assert.Equal(t, DefaultFloodWindow, e.Window())
	assert.Nil(t, e.Evaluate(rtpObs("7.7.7.7", "8.8.8.8"), nil))

	e.AddRule(srcRule{addr: "7.7.7.7"})
	ev := e.Evaluate(rtpObs("7.7.7.7", "8.8.8.8"), nil)
	require.NotNil(t, ev)
	assert.Equal(t, "custom", ev.Reason)
}

func TestBlacklistRule_Add(t *testing.T) {
	r := NewBlacklistRule(nil)
	assert.False(t, r.Contains("1.1.1.1"))
	r.Add("1.1.1.1")
	assert.True(t, r.Contains("1.1.1.1"))
}
