// Package mock generates synthetic VoIP traffic for demos and tests.
package mock

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pion/rtp"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// SIPPort is the signalling port used by every generated SIP frame.
const SIPPort = 5060

// Address pools. The first three suspicious addresses are on the default
// blacklist.
var (
	LegitimateAddrs = []string{
		"192.168.1.10", "192.168.1.20", "192.168.1.30",
		"10.0.0.10", "10.0.0.20", "172.16.0.10",
	}
	SuspiciousAddrs = []string{
		"192.168.1.100", "10.0.0.50", "172.16.1.200",
		"203.0.113.15", "198.51.100.25",
	}
)

var userAgents = []string{
	"Asterisk PBX 18.0.0",
	"FreeSWITCH-mod_sofia/1.10.0",
	"SIP.js/0.15.0",
	"Linphone/4.2.0",
}

const botAgent = "MaliciousBot/1.0"

// Timing of generated activities.
const (
	rtpInterval      = 20 * time.Millisecond
	rtpSamples       = 160 // PCMU, 20 ms at 8 kHz
	registerInterval = 50 * time.Millisecond
	floodInterval    = 20 * time.Millisecond
)

// GeneratorOptions tunes the traffic mix.
type GeneratorOptions struct {
	Seed           int64
	SuspiciousRate float64 // share of activities that are attacks
	RTPPackets     int     // media packets per direction and call
	Registers      int     // REGISTER attempts per attack
	Invites        int     // INVITE flood size per attack
	MinGap, MaxGap time.Duration
}

// DefaultGeneratorOptions mirrors a small office PBX under occasional attack.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Seed:           1,
		SuspiciousRate: 0.2,
		RTPPackets:     100,
		Registers:      20,
		Invites:        50,
		MinGap:         time.Second,
		MaxGap:         5 * time.Second,
	}
}

// Generator builds timestamped frames for call flows and attacks.
// It is not safe for concurrent use.
type Generator struct {
	opts   GeneratorOptions
	rng    *rand.Rand
	callID int
}

// NewGenerator creates a deterministic generator for opts.Seed.
func NewGenerator(opts GeneratorOptions) *Generator {
	def := DefaultGeneratorOptions()
	if opts.RTPPackets <= 0 {
		opts.RTPPackets = def.RTPPackets
	}
	if opts.Registers <= 0 {
		opts.Registers = def.Registers
	}
	if opts.Invites <= 0 {
		opts.Invites = def.Invites
	}
	if opts.MinGap <= 0 {
		opts.MinGap = def.MinGap
	}
	if opts.MaxGap < opts.MinGap {
		opts.MaxGap = opts.MinGap
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Activity returns the frames of one randomly chosen activity starting at
// start: a legitimate call or an attack burst.
func (g *Generator) Activity(start time.Time) []domain.Frame {
	if g.rng.Float64() < g.opts.SuspiciousRate {
		return g.Attack(g.pick(SuspiciousAddrs), start)
	}
	src := g.pick(LegitimateAddrs)
	return g.Call(src, g.pickOther(LegitimateAddrs, src), start)
}

// Gap returns the pause before the next activity.
func (g *Generator) Gap() time.Duration {
	span := g.opts.MaxGap - g.opts.MinGap
	if span <= 0 {
		return g.opts.MinGap
	}
	return g.opts.MinGap + time.Duration(g.rng.Int63n(int64(span)))
}

// Call builds a complete dialog: INVITE, ACK from the callee, media in both
// directions and a closing BYE.
func (g *Generator) Call(caller, callee string, start time.Time) []domain.Frame {
	frames := make([]domain.Frame, 0, 2*g.opts.RTPPackets+3)
	callID := g.nextCallID(caller)

	at := start
	frames = append(frames, g.SIP(caller, callee, domain.MethodInvite, callID, g.pick(userAgents), at))
	at = at.Add(100 * time.Millisecond)
	frames = append(frames, g.SIP(callee, caller, domain.MethodAck, callID, g.pick(userAgents), at))
	at = at.Add(200 * time.Millisecond)

	callerPort, calleePort := g.mediaPort(), g.mediaPort()
	out := newStream(g.rng)
	back := newStream(g.rng)
	for i := 0; i < g.opts.RTPPackets; i++ {
		frames = append(frames,
			g.RTP(caller, callee, callerPort, calleePort, out.next(), at),
			g.RTP(callee, caller, calleePort, callerPort, back.next(), at),
		)
		at = at.Add(rtpInterval)
	}

	frames = append(frames, g.SIP(caller, callee, domain.MethodBye, callID, g.pick(userAgents), at))
	return frames
}

// Attack builds a REGISTER sweep followed by an INVITE flood against the
// legitimate pool.
func (g *Generator) Attack(src string, start time.Time) []domain.Frame {
	frames := make([]domain.Frame, 0, g.opts.Registers+g.opts.Invites)
	at := start
	for i := 0; i < g.opts.Registers; i++ {
		frames = append(frames, g.SIP(src, g.pick(LegitimateAddrs), domain.MethodRegister, g.nextCallID(src), botAgent, at))
		at = at.Add(registerInterval)
	}
	for i := 0; i < g.opts.Invites; i++ {
		frames = append(frames, g.SIP(src, g.pick(LegitimateAddrs), domain.MethodInvite, g.nextCallID(src), botAgent, at))
		at = at.Add(floodInterval)
	}
	return frames
}

// SIP builds a single SIP request frame.
func (g *Generator) SIP(src, dst string, method domain.SipMethod, callID, userAgent string, at time.Time) domain.Frame {
	var b strings.Builder
	fmt.Fprintf(&b, "%s sip:%s SIP/2.0\r\n", method, dst)
	fmt.Fprintf(&b, "Via: SIP/2.0/UDP %s:%d;branch=z9hG4bK%06d\r\n", src, SIPPort, 100000+g.rng.Intn(900000))
	fmt.Fprintf(&b, "From: <sip:%s>\r\n", src)
	fmt.Fprintf(&b, "To: <sip:%s>\r\n", dst)
	fmt.Fprintf(&b, "Call-ID: %s\r\n", callID)
	fmt.Fprintf(&b, "CSeq: 1 %s\r\n", method)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Content-Length: 0\r\n\r\n")

	return domain.Frame{
		Timestamp: at,
		SrcAddr:   src,
		DstAddr:   dst,
		Transport: domain.TransportUDP,
		SrcPort:   SIPPort,
		DstPort:   SIPPort,
		Payload:   []byte(b.String()),
	}
}

// RTP builds one media frame carrying the given header.
func (g *Generator) RTP(src, dst string, srcPort, dstPort uint16, hdr rtp.Header, at time.Time) domain.Frame {
	// Samples keep the high bit set so the payload never spells a SIP method.
	samples := make([]byte, rtpSamples)
	for i := range samples {
		samples[i] = 0x80 | byte(g.rng.Intn(0x80))
	}
	pkt := rtp.Packet{Header: hdr, Payload: samples}
	data, err := pkt.Marshal()
	if err != nil {
		data = samples
	}
	return domain.Frame{
		Timestamp: at,
		SrcAddr:   src,
		DstAddr:   dst,
		Transport: domain.TransportUDP,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Payload:   data,
	}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) pickOther(pool []string, not string) string {
	for {
		if addr := g.pick(pool); addr != not {
			return addr
		}
	}
}

// mediaPort returns an even port in the 16384-32767 media range.
func (g *Generator) mediaPort() uint16 {
	return uint16(16384 + 2*g.rng.Intn(8192))
}

func (g *Generator) nextCallID(host string) string {
	g.callID++
	return fmt.Sprintf("call-%d@%s", g.callID, host)
}

// stream tracks the RTP header state of one direction of a call.
type stream struct {
	ssrc uint32
	seq  uint16
	ts   uint32
}

func newStream(rng *rand.Rand) *stream {
	return &stream{
		ssrc: rng.Uint32() | 0x80808080,
		seq:  uint16(rng.Intn(1 << 15)),
		ts:   rng.Uint32(),
	}
}

func (s *stream) next() rtp.Header {
	h := rtp.Header{
		Version:        2,
		PayloadType:    0,
		SequenceNumber: s.seq,
		Timestamp:      s.ts,
		SSRC:           s.ssrc,
	}
	s.seq++
	s.ts += rtpSamples
	return h
}
