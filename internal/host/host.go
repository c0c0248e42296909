// Package host implements the host role of spec.md §4.5: draining per-peer
// command buffers honoring not_before_ts release gating, committing
// released records to the journal, and pushing the snapshot cache when the
// journal has grown enough since the last push.
package host

import (
	"fmt"
	"sync"

	"github.com/dojam/dojam/internal/journal"
	"github.com/dojam/dojam/internal/mim"
	"github.com/dojam/dojam/internal/model"
	"github.com/dojam/dojam/internal/ring"
	"github.com/dojam/dojam/internal/snapcache"
)

// Record is one not-yet-committed command sitting in a peer's buffer.
type Record struct {
	ArtistID    int64
	SessionID   int64
	Tracer      int64
	NotBeforeTs int64
	Payload     []byte
}

// peerQueue is one connected peer's pending records, in arrival order.
type peerQueue struct {
	artistID int64
	pending  []Record
}

// Host owns the present snapshot, the journal, the optional snapshot
// cache, and every connected peer's command queue.
type Host struct {
	mu sync.Mutex

	Present *model.Snapshot
	Journal *journal.Journal
	Cache   *snapcache.Cache // nil disables snapshot-cache pushes

	// LocalRing, when set, is drained once per tick into the local
	// (co-located) peer's queue, per spec.md §4.5 step 2.
	LocalRing      *ring.Buffer
	LocalArtistID  int64
	localRingQueue bool

	PushThresholdBytes int64

	queues               map[int64]*peerQueue
	journalSinceLastPush int64
}

// New returns a Host ready to drain ticks against an already-open journal
// and present snapshot (fresh or restored).
func New(present *model.Snapshot, jnl *journal.Journal, cache *snapcache.Cache, pushThresholdBytes int64) *Host {
	return &Host{
		Present:            present,
		Journal:            jnl,
		Cache:              cache,
		PushThresholdBytes: pushThresholdBytes,
		queues:             map[int64]*peerQueue{},
	}
}

// EnableLocalRing wires a co-located peer's ring buffer as the source for
// artistID's queue, drained once per Tick (spec.md §4.5 step 2).
func (h *Host) EnableLocalRing(buf *ring.Buffer, artistID int64) {
	h.LocalRing = buf
	h.LocalArtistID = artistID
	h.localRingQueue = true

	h.queueFor(artistID)
}

// Submit enqueues one record arriving over the wire for artistID
// (spec.md §4.5 step 3's input, for peers not co-located with the host).
func (h *Host) Submit(artistID int64, r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	q := h.queueFor(artistID)
	q.pending = append(q.pending, r)
}

func (h *Host) queueFor(artistID int64) *peerQueue {
	q, ok := h.queues[artistID]
	if !ok {
		q = &peerQueue{artistID: artistID}
		h.queues[artistID] = q
	}

	return q
}

// TickReport summarizes the work one Tick performed.
type TickReport struct {
	Committed int
	Pushed    bool
	DidWork   bool
}

// Tick drains every peer queue up to the first not-yet-released record,
// committing each released record to the journal and the present snapshot,
// then pushes the snapshot cache if the journal has grown past threshold
// (spec.md §4.5).
func (h *Host) Tick(nowMicro int64) (TickReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var report TickReport

	if h.localRingQueue {
		if err := h.drainLocalRing(); err != nil {
			return report, err
		}
	}

	for _, artistID := range h.sortedArtistIDs() {
		q := h.queues[artistID]

		n, err := h.drainQueue(q, nowMicro)
		if err != nil {
			return report, err
		}

		report.Committed += n
	}

	report.DidWork = report.Committed > 0

	if h.Cache != nil && h.journalSinceLastPush >= h.PushThresholdBytes && h.PushThresholdBytes > 0 {
		if err := h.Cache.Push(h.Present, h.Journal.Size(), nowMicro); err != nil {
			return report, fmt.Errorf("host: tick: push snapshot cache: %w", err)
		}

		h.journalSinceLastPush = 0
		report.Pushed = true
		report.DidWork = true
	}

	return report, nil
}

// drainLocalRing moves every complete record currently in the local ring
// into the local peer's queue. Records are framed the same way journal
// entries are, so it reuses [journal.DecodeEntry] to find boundaries - the
// ring here is plain bytes, not a journal, but the framing (the
// deliberately shared format spec.md §9 invites) is identical.
func (h *Host) drainLocalRing() error {
	q := h.queueFor(h.LocalArtistID)

	for {
		peekLen := h.LocalRing.Len()
		if peekLen == 0 {
			return nil
		}

		buf := make([]byte, peekLen)
		if h.LocalRing.Peek(buf) != peekLen {
			return nil
		}

		e, consumed, err := journal.DecodeEntry(buf)
		if err != nil {
			return nil // incomplete trailing record; wait for more bytes next tick
		}

		h.LocalRing.Advance(consumed)

		q.pending = append(q.pending, Record{
			ArtistID:    h.LocalArtistID,
			SessionID:   e.SessionID,
			Tracer:      e.Tracer,
			NotBeforeTs: e.TsMicro,
			Payload:     e.Payload,
		})
	}
}

// drainQueue releases and commits every record at the front of q whose
// NotBeforeTs has passed, stopping at the first unreleased record
// (spec.md §4.5 step 3). A record mim rejects is discarded without
// affecting the snapshot (spec.md §4.3's failure semantics) and without
// halting the rest of the queue; only journal I/O failures abort the tick.
func (h *Host) drainQueue(q *peerQueue, nowMicro int64) (int, error) {
	committed := 0

	for len(q.pending) > 0 {
		r := q.pending[0]
		if r.NotBeforeTs > nowMicro {
			break
		}

		q.pending = q.pending[1:]

		ok, err := h.commit(r, nowMicro)
		if err != nil {
			return committed, err
		}

		if ok {
			committed++
		}
	}

	return committed, nil
}

// commit applies r to the present snapshot and, if accepted, appends it to
// the journal. The bool return reports whether r was accepted; it is false
// (with a nil error) when mim rejected a malformed record.
func (h *Host) commit(r Record, nowMicro int64) (bool, error) {
	env := mim.Envelope{ArtistID: r.ArtistID, SessionID: r.SessionID}
	if err := mim.Apply(h.Present, env, r.Payload, nowMicro); err != nil {
		return false, nil
	}

	before := h.Journal.Size()

	if _, err := h.Journal.Append(journal.Entry{
		TsMicro:   nowMicro,
		ArtistID:  r.ArtistID,
		SessionID: r.SessionID,
		Tracer:    r.Tracer,
		Payload:   r.Payload,
	}, false); err != nil {
		return false, fmt.Errorf("host: commit: journal append: %w", err)
	}

	h.journalSinceLastPush += h.Journal.Size() - before

	return true, nil
}

func (h *Host) sortedArtistIDs() []int64 {
	ids := make([]int64, 0, len(h.queues))
	for id := range h.queues {
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	return ids
}
