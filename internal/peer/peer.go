// Package peer implements the editor-session side of spec.md §4.4: a
// speculative "fiddle" snapshot rebased onto the host-confirmed "upstream"
// snapshot as journal segments arrive.
package peer

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/dojam/dojam/internal/journal"
	"github.com/dojam/dojam/internal/mim"
	"github.com/dojam/dojam/internal/model"
	"github.com/dojam/dojam/internal/wire"
)

// ErrTracerDisorder reports that the un-ack'd buffer is no longer strictly
// increasing after reconciliation, a fatal protocol error (spec.md §4.4).
var ErrTracerDisorder = errors.New("peer: tracer order violated")

// ErrNoPendingMim reports EndMim called without a matching BeginMim.
var ErrNoPendingMim = errors.New("peer: no pending mim message")

// Unacked is one local mim message not yet confirmed by the host
// (spec.md §3's peer un-ack'd buffer).
type Unacked struct {
	SessionID   int64
	Tracer      int64
	NotBeforeTs int64
	Payload     []byte
}

// Peer holds the upstream/fiddle snapshot pair and the un-ack'd buffer for
// one artist's connection to a host.
type Peer struct {
	ArtistID int64

	Upstream *model.Snapshot
	Fiddle   *model.Snapshot
	Unacked  []Unacked

	nextTracer int64

	// Artificial latency, off by default. When enabled, EndMim adds jitter
	// to NotBeforeTs drawn from an Irwin-Hall approximation of a normal
	// distribution (spec.md §4.4).
	ArtificialLatency  bool
	LatencyMeanMicro   int64
	LatencyStdDevMicro int64
	rng                *rand.Rand

	pendingSessionID int64
	pendingBuf       []byte
	pendingActive    bool
}

// New returns a Peer with an empty upstream/fiddle snapshot pair.
// rngSeed seeds the artificial-latency jitter generator deterministically.
func New(artistID int64, rngSeed int64) *Peer {
	return &Peer{
		ArtistID: artistID,
		Upstream: model.New(),
		Fiddle:   model.New(),
		rng:      rand.New(rand.NewSource(rngSeed)), //nolint:gosec // latency jitter, not security-sensitive
	}
}

// BeginMim starts accumulating command bytes for sessionID. Write appends to
// the pending buffer; EndMim finalizes the message (spec.md §4.4).
func (p *Peer) BeginMim(sessionID int64) {
	p.pendingSessionID = sessionID
	p.pendingBuf = p.pendingBuf[:0]
	p.pendingActive = true
}

// Write appends b to the pending mim message.
func (p *Peer) Write(b []byte) {
	p.pendingBuf = append(p.pendingBuf, b...)
}

// EndMim assigns a tracer, applies the accumulated message to the fiddle
// snapshot, and enqueues it on the un-ack'd buffer, returning the wire
// message to send (or hand to the host's ring buffer, if peer==host).
func (p *Peer) EndMim(nowMicro int64) (wire.Mim, error) {
	if !p.pendingActive {
		return wire.Mim{}, ErrNoPendingMim
	}

	p.pendingActive = false

	payload := append([]byte(nil), p.pendingBuf...)

	if err := mim.Apply(p.Fiddle, mim.Envelope{ArtistID: p.ArtistID, SessionID: p.pendingSessionID}, payload, nowMicro); err != nil {
		return wire.Mim{}, fmt.Errorf("peer: apply to fiddle: %w", err)
	}

	tracer := p.nextTracer
	p.nextTracer++

	notBefore := nowMicro
	if p.ArtificialLatency {
		notBefore += p.artificialLatencyMicro()
	}

	p.Unacked = append(p.Unacked, Unacked{
		SessionID:   p.pendingSessionID,
		Tracer:      tracer,
		NotBeforeTs: notBefore,
		Payload:     payload,
	})

	return wire.Mim{SessionID: p.pendingSessionID, Tracer: tracer, Payload: payload}, nil
}

// artificialLatencyMicro approximates a normal distribution via the sum of
// 12 uniform draws (Irwin-Hall), which has mean 6 and variance 1 -
// subtracting 6 centers it at zero (spec.md §4.4).
func (p *Peer) artificialLatencyMicro() int64 {
	sum := 0.0
	for i := 0; i < 12; i++ {
		sum += p.rng.Float64()
	}

	z := sum - 6

	latency := p.LatencyMeanMicro + int64(z*float64(p.LatencyStdDevMicro))
	if latency < 0 {
		latency = 0
	}

	return latency
}

// ApplyJournalSegment implements spec.md §4.4's reconciliation: every entry
// is applied to upstream; un-ack'd records this peer's artist has now seen
// confirmed (tracer at or below the highest tracer observed for their
// session) are dropped; fiddle is rebuilt as upstream plus a replay of
// whatever remains.
func (p *Peer) ApplyJournalSegment(entries []journal.Entry) error {
	maxTracerBySession := map[int64]int64{}

	for _, e := range entries {
		env := mim.Envelope{ArtistID: e.ArtistID, SessionID: e.SessionID}
		if err := mim.Apply(p.Upstream, env, e.Payload, e.TsMicro); err != nil {
			return fmt.Errorf("peer: apply journal entry to upstream: %w", err)
		}

		if e.ArtistID != p.ArtistID {
			continue
		}

		if cur, ok := maxTracerBySession[e.SessionID]; !ok || e.Tracer > cur {
			maxTracerBySession[e.SessionID] = e.Tracer
		}
	}

	remaining := p.Unacked[:0]

	for _, u := range p.Unacked {
		if t, ok := maxTracerBySession[u.SessionID]; ok && u.Tracer <= t {
			continue // acknowledged
		}

		remaining = append(remaining, u)
	}

	for i := 1; i < len(remaining); i++ {
		if remaining[i].SessionID == remaining[i-1].SessionID && remaining[i].Tracer <= remaining[i-1].Tracer {
			return fmt.Errorf("%w: session=%d", ErrTracerDisorder, remaining[i].SessionID)
		}
	}

	p.Unacked = remaining
	p.Fiddle = p.Upstream.Clone()

	for _, u := range p.Unacked {
		env := mim.Envelope{ArtistID: p.ArtistID, SessionID: u.SessionID}
		if err := mim.Apply(p.Fiddle, env, u.Payload, u.NotBeforeTs); err != nil {
			return fmt.Errorf("peer: replay un-ack'd onto fiddle: %w", err)
		}
	}

	return nil
}

// ApplyRawJournalSegment decodes a stream of framed journal entries (as
// delivered by [wire.JournalUpdate] or read directly off a journal file)
// and applies them via ApplyJournalSegment.
//
// This is the entry point a peer-only process (one with no co-located
// host) drives from its transport's read loop - spec.md §9 names this case
// as deliberately out of scope for the host/peer tick loop, leaving
// delivery to an external transport; this method is where that delivery
// lands once received.
func (p *Peer) ApplyRawJournalSegment(raw [][]byte) error {
	entries := make([]journal.Entry, 0, len(raw))

	for _, frame := range raw {
		e, _, err := journal.DecodeEntry(frame)
		if err != nil {
			return fmt.Errorf("peer: decode raw journal segment: %w", err)
		}

		entries = append(entries, e)
	}

	return p.ApplyJournalSegment(entries)
}
