// Package rbc implements Byzantine reliable broadcast: all honest players
// deliver the same payload for a given (origin, tag), or none do, despite up
// to t actively malicious players. Requires n >= 3t+1.
package rbc

import (
	"context"
	"crypto/sha256"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"asyncmpc/logging"
	"asyncmpc/tools"
)

var (
	// ErrEquivocation is reported when an origin demonstrably proposed two
	// different payloads under the same tag.
	ErrEquivocation = errors.New("broadcast equivocation detected")
	// ErrGroupTooSmall is returned when n < 3t+1.
	ErrGroupTooSmall = errors.New("reliable broadcast needs n >= 3t+1")
)

// State of a broadcast instance. Transitions only move forward.
type State int32

const (
	StateInit State = iota
	StateWaitEcho
	StateWaitReady
	StateDelivered
)

// Broadcaster runs any number of Bracha instances, one per (origin, tag).
// Outbound messages go through the injected send function; inbound messages
// are fed through HandleMessage by whoever owns the receive loop, so the
// broadcaster can sit under the runtime or run standalone over an interface.
type Broadcaster struct {
	n, t      int
	id        int32
	out       func([]byte) error
	instances *tools.ConcurrentMap[string, *instance]
	deliverCb func(origin int32, tag string, payload []byte)
	cbMu      sync.RWMutex
	log       zerolog.Logger
}

// NewBroadcaster creates a broadcaster for a group of n players tolerating t
// Byzantine ones. out must deliver the raw message to every player,
// including the local one.
func NewBroadcaster(n, t int, id int32, out func([]byte) error) (*Broadcaster, error) {
	if n < 3*t+1 {
		return nil, xerrors.Errorf("n=%d t=%d: %w", n, t, ErrGroupTooSmall)
	}
	return &Broadcaster{
		n:         n,
		t:         t,
		id:        id,
		out:       out,
		instances: tools.NewConcurrentMap[string, *instance](),
		log:       logging.GetLogger(id),
	}, nil
}

// OnDeliver registers a callback invoked exactly once per delivered
// instance.
func (b *Broadcaster) OnDeliver(fn func(origin int32, tag string, payload []byte)) {
	b.cbMu.Lock()
	defer b.cbMu.Unlock()
	b.deliverCb = fn
}

// Broadcast starts an instance with the local player as origin.
func (b *Broadcaster) Broadcast(tag string, payload []byte) error {
	msg := &Message{Kind: msgPropose, Origin: b.id, Tag: tag, Payload: payload}
	bs, err := msg.Marshal()
	if err != nil {
		return err
	}
	return b.out(bs)
}

// Deliver blocks until the (origin, tag) instance delivers or fails.
// Re-delivery of an already delivered tag returns the same payload without
// re-running anything.
func (b *Broadcaster) Deliver(ctx context.Context, origin int32, tag string) ([]byte, error) {
	inst := b.instance(origin, tag)
	select {
	case <-inst.done:
		return inst.value, inst.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleMessage feeds one received message into the corresponding instance.
// from is the authenticated transport-level sender.
func (b *Broadcaster) HandleMessage(from int32, bs []byte) error {
	msg := &Message{}
	if err := msg.Unmarshal(bs); err != nil {
		return xerrors.Errorf("decoding rbc message: %w", err)
	}
	inst := b.instance(msg.Origin, msg.Tag)
	return inst.handle(b, from, msg)
}

func (b *Broadcaster) instance(origin int32, tag string) *instance {
	key := instanceKey(origin, tag)
	return b.instances.GetOrSet(key, func() *instance {
		return newInstance(origin, tag)
	})
}

func instanceKey(origin int32, tag string) string {
	return strconv.FormatInt(int64(origin), 10) + "|" + tag
}

// echoQuorum is the count of matching echoes needed before sending ready.
func (b *Broadcaster) echoQuorum() int { return (b.n + b.t + 2) / 2 }

// readyAmplify is the count of matching readies that triggers our own ready
// even without an echo quorum.
func (b *Broadcaster) readyAmplify() int { return b.t + 1 }

// deliverQuorum is the count of matching readies needed to deliver.
func (b *Broadcaster) deliverQuorum() int { return 2*b.t + 1 }

func (b *Broadcaster) send(msg *Message) error {
	bs, err := msg.Marshal()
	if err != nil {
		return err
	}
	return b.out(bs)
}

func (b *Broadcaster) delivered(inst *instance) {
	b.cbMu.RLock()
	cb := b.deliverCb
	b.cbMu.RUnlock()
	if cb != nil {
		cb(inst.origin, inst.tag, inst.value)
	}
}

// instance is the per-(origin, tag) state machine.
type instance struct {
	sync.Mutex
	origin int32
	tag    string
	state  State

	payloads  map[string][]byte             // digest -> payload
	echoes    map[string]map[int32]struct{} // digest -> reporters
	readies   map[string]map[int32]struct{}
	echoedBy  map[int32]string // first digest echoed by each peer
	readiedBy map[int32]string
	proposed  string // digest first proposed by the origin
	echoSent  bool
	readySent bool

	done  chan struct{}
	value []byte
	err   error
}

func newInstance(origin int32, tag string) *instance {
	return &instance{
		origin:    origin,
		tag:       tag,
		state:     StateInit,
		payloads:  make(map[string][]byte),
		echoes:    make(map[string]map[int32]struct{}),
		readies:   make(map[string]map[int32]struct{}),
		echoedBy:  make(map[int32]string),
		readiedBy: make(map[int32]string),
		done:      make(chan struct{}),
	}
}

func digestOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return string(sum[:])
}

func (inst *instance) handle(b *Broadcaster, from int32, msg *Message) error {
	inst.Lock()
	defer inst.Unlock()

	// Terminal states are idempotent: late or duplicate reports are no-ops.
	if inst.state == StateDelivered || inst.err != nil {
		return nil
	}

	d := digestOf(msg.Payload)
	inst.payloads[d] = msg.Payload

	switch msg.Kind {
	case msgPropose:
		return inst.onPropose(b, from, d)
	case msgEcho:
		return inst.onEcho(b, from, d)
	case msgReady:
		return inst.onReady(b, from, d)
	default:
		return xerrors.Errorf("unknown rbc message kind %d", msg.Kind)
	}
}

// onPropose echoes the origin's payload. A second, different proposal from
// the origin is immediate proof of equivocation.
func (inst *instance) onPropose(b *Broadcaster, from int32, d string) error {
	if from != inst.origin {
		// Only the origin may propose; drop forged proposals.
		return nil
	}
	if inst.proposed != "" && inst.proposed != d {
		inst.fail(ErrEquivocation)
		return ErrEquivocation
	}
	inst.proposed = d
	return inst.maybeEcho(b, d)
}

func (inst *instance) onEcho(b *Broadcaster, from int32, d string) error {
	// Count the first echo per peer only; conflicting repeats never
	// double-count.
	if _, ok := inst.echoedBy[from]; ok {
		return nil
	}
	inst.echoedBy[from] = d
	addReport(inst.echoes, d, from)

	if err := inst.checkEquivocation(b); err != nil {
		return err
	}

	// A quorum of matching echoes lets us echo too (if the propose never
	// reached us) and then commit to the payload with a ready.
	if len(inst.echoes[d]) >= b.echoQuorum() {
		if err := inst.maybeEcho(b, d); err != nil {
			return err
		}
		if err := inst.maybeReady(b, d); err != nil {
			return err
		}
	}
	return nil
}

func (inst *instance) onReady(b *Broadcaster, from int32, d string) error {
	if _, ok := inst.readiedBy[from]; ok {
		return nil
	}
	inst.readiedBy[from] = d
	addReport(inst.readies, d, from)

	// t+1 readies cannot all come from liars; amplify.
	if len(inst.readies[d]) >= b.readyAmplify() {
		if err := inst.maybeReady(b, d); err != nil {
			return err
		}
	}
	if len(inst.readies[d]) >= b.deliverQuorum() {
		inst.deliverLocked(b, d)
	}
	return nil
}

func (inst *instance) maybeEcho(b *Broadcaster, d string) error {
	if inst.echoSent {
		return nil
	}
	inst.echoSent = true
	if inst.state == StateInit {
		inst.state = StateWaitEcho
	}
	return b.send(&Message{Kind: msgEcho, Origin: inst.origin, Tag: inst.tag, Payload: inst.payloads[d]})
}

func (inst *instance) maybeReady(b *Broadcaster, d string) error {
	if inst.readySent {
		return nil
	}
	inst.readySent = true
	if inst.state == StateInit || inst.state == StateWaitEcho {
		inst.state = StateWaitReady
	}
	return b.send(&Message{Kind: msgReady, Origin: inst.origin, Tag: inst.tag, Payload: inst.payloads[d]})
}

// checkEquivocation fails the instance once two distinct payloads each
// gather more than t echoes: at least one honest player echoed each, which
// only an equivocating origin can cause.
func (inst *instance) checkEquivocation(b *Broadcaster) error {
	over := 0
	for _, reporters := range inst.echoes {
		if len(reporters) > b.t {
			over++
		}
	}
	if over > 1 {
		inst.fail(ErrEquivocation)
		return ErrEquivocation
	}
	return nil
}

func (inst *instance) deliverLocked(b *Broadcaster, d string) {
	inst.state = StateDelivered
	inst.value = inst.payloads[d]
	close(inst.done)
	b.delivered(inst)
}

func (inst *instance) fail(err error) {
	inst.err = err
	close(inst.done)
}

func addReport(m map[string]map[int32]struct{}, d string, from int32) {
	if m[d] == nil {
		m[d] = make(map[int32]struct{})
	}
	m[d][from] = struct{}{}
}
