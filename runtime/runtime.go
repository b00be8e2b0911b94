// Package runtime schedules multiparty computations over secret-shared
// values. A program is written as straight-line Go calling the share
// operations; each call returns immediately with a handle and the scheduler
// executes the resulting dataflow graph in whatever order the network lets
// it, overlapping the message rounds of independent operations.
//
// All players must issue the same operations in the same program order, which
// is what keeps the automatically assigned protocol tags aligned without any
// coordination messages. Issue operations from a single program goroutine;
// Await is safe anywhere.
package runtime

import (
	"context"
	"crypto/rand"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"asyncmpc/logging"
	"asyncmpc/networking"
	"asyncmpc/rbc"
)

// rbcTag routes reliable broadcast traffic past the dataflow dispatcher.
// Operation tags always carry a numeric suffix, so they never collide.
const rbcTag = "rbc"

type routeKey struct {
	sender int32
	tag    string
	round  int32
}

// Runtime is one player's scheduler. Everything behind the public API runs on
// a single goroutine fed through the ops channel, so protocol state needs no
// further locking.
type Runtime struct {
	conf  Config
	id    int32
	iface networking.NetworkInterface
	log   zerolog.Logger
	rng   io.Reader

	ops  chan func()
	quit chan struct{}

	// Scheduler-goroutine state.
	counter  uint64
	waiters  map[routeKey]func(payload []byte)
	backlog  map[routeKey][][]byte
	tracked  map[*Share]struct{}
	poisoned error

	bcast *rbc.Broadcaster
}

// NewRuntime creates a runtime for the player behind the given interface.
// Reliable broadcast is wired in when the group is large enough for it.
func NewRuntime(conf Config, iface networking.NetworkInterface) (*Runtime, error) {
	conf.withDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		conf:    conf,
		id:      iface.GetID(),
		iface:   iface,
		log:     logging.GetLogger(iface.GetID()),
		rng:     rand.Reader,
		ops:     make(chan func(), 1024),
		quit:    make(chan struct{}),
		waiters: make(map[routeKey]func([]byte)),
		backlog: make(map[routeKey][][]byte),
		tracked: make(map[*Share]struct{}),
	}
	if rt.id < 1 || int(rt.id) > conf.N {
		return nil, xerrors.Errorf("player id %d outside 1..%d", rt.id, conf.N)
	}
	if conf.N >= 3*conf.T+1 {
		b, err := rbc.NewBroadcaster(conf.N, conf.T, rt.id, rt.rbcOut)
		if err != nil {
			return nil, err
		}
		rt.bcast = b
	}
	return rt, nil
}

// ID returns this player's id, 1-based.
func (rt *Runtime) ID() int32 { return rt.id }

// Start runs the scheduler and receive loops until the context is done.
func (rt *Runtime) Start(ctx context.Context) {
	go rt.recvLoop(ctx)
	go rt.loop(ctx)
}

func (rt *Runtime) loop(ctx context.Context) {
	defer close(rt.quit)
	for {
		select {
		case fn := <-rt.ops:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// post hands a closure to the scheduler goroutine.
func (rt *Runtime) post(fn func()) {
	select {
	case rt.ops <- fn:
	case <-rt.quit:
	}
}

// recvLoop pumps the network into the scheduler. A receive error that is not
// a context shutdown means the transport is gone for good: every pending
// share is failed so no Await ever hangs.
func (rt *Runtime) recvLoop(ctx context.Context) {
	for {
		bs, err := rt.iface.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rt.log.Error().Err(err).Msg("transport failed")
			rt.post(func() {
				rt.failAllPending(xerrors.Errorf("receive: %v: %w", err, ErrTransportClosed))
			})
			return
		}
		pkt := &networking.Packet{}
		if err := pkt.Unmarshal(bs); err != nil {
			rt.log.Error().Err(err).Msg("error decoding packet")
			continue
		}
		rt.post(func() { rt.dispatch(pkt) })
	}
}

// dispatch routes one packet to the continuation awaiting it, or buffers it
// until the local program catches up and registers one.
func (rt *Runtime) dispatch(pkt *networking.Packet) {
	if pkt.Tag == rbcTag {
		if rt.bcast == nil {
			return
		}
		if err := rt.bcast.HandleMessage(pkt.Sender, pkt.Payload); err != nil {
			rt.log.Err(err).Msg("error handling broadcast message")
		}
		return
	}
	key := routeKey{sender: pkt.Sender, tag: pkt.Tag, round: pkt.Round}
	if fn, ok := rt.waiters[key]; ok {
		delete(rt.waiters, key)
		fn(pkt.Payload)
		return
	}
	rt.backlog[key] = append(rt.backlog[key], pkt.Payload)
}

// await registers a continuation for one message, consuming a buffered one
// immediately if the message outran the program. Scheduler goroutine only.
func (rt *Runtime) await(sender int32, tag string, round int32, fn func(payload []byte)) {
	key := routeKey{sender: sender, tag: tag, round: round}
	if q := rt.backlog[key]; len(q) > 0 {
		payload := q[0]
		if len(q) == 1 {
			delete(rt.backlog, key)
		} else {
			rt.backlog[key] = q[1:]
		}
		fn(payload)
		return
	}
	rt.waiters[key] = fn
}

// sendTo ships one protocol message. Send errors are only logged; a dead
// transport surfaces through the receive loop and poisons everything anyway.
func (rt *Runtime) sendTo(to int32, tag string, round int32, payload []byte) {
	pkt := networking.NewPacket(rt.id, tag, round, payload)
	frame, err := pkt.Marshal()
	if err != nil {
		rt.log.Error().Err(err).Msg("error encoding packet")
		return
	}
	if err := rt.iface.Send(frame, to); err != nil {
		rt.log.Warn().Err(err).Int32("to", to).Str("tag", tag).Msg("send failed")
	}
}

func (rt *Runtime) sendAllOthers(tag string, round int32, payload []byte) {
	for j := 1; j <= rt.conf.N; j++ {
		if int32(j) == rt.id {
			continue
		}
		rt.sendTo(int32(j), tag, round, payload)
	}
}

// tag allocates the next protocol tag. Identical program order on all players
// makes the sequence identical everywhere. Scheduler goroutine only; always
// called from posted closures, whose order follows the program order.
func (rt *Runtime) tag(prefix string) string {
	rt.counter++
	return prefix + "." + strconv.FormatUint(rt.counter, 10)
}

// failAllPending settles every pending handle with err and drops all message
// continuations. Later operations fail on arrival at the scheduler.
func (rt *Runtime) failAllPending(err error) {
	if rt.poisoned != nil {
		return
	}
	rt.poisoned = err
	rt.waiters = make(map[routeKey]func([]byte))
	pending := make([]*Share, 0, len(rt.tracked))
	for s := range rt.tracked {
		pending = append(pending, s)
	}
	for _, s := range pending {
		s.fail(err)
	}
}

func (rt *Runtime) rbcOut(bs []byte) error {
	pkt := networking.NewPacket(rt.id, rbcTag, 0, bs)
	frame, err := pkt.Marshal()
	if err != nil {
		return err
	}
	return rt.iface.Broadcast(frame)
}

// Broadcast reliably broadcasts an application payload under the given tag.
// Unlike Open and the arithmetic, broadcast tolerates actively Byzantine
// players and therefore needs n >= 3t+1.
func (rt *Runtime) Broadcast(tag string, payload []byte) error {
	if rt.bcast == nil {
		return ErrBroadcastUnavailable
	}
	return rt.bcast.Broadcast(tag, payload)
}

// DeliverBroadcast blocks until the (origin, tag) broadcast delivers, with
// the guarantee that every honest player delivers the same payload.
func (rt *Runtime) DeliverBroadcast(ctx context.Context, origin int32, tag string) ([]byte, error) {
	if rt.bcast == nil {
		return nil, ErrBroadcastUnavailable
	}
	return rt.bcast.Deliver(ctx, origin, tag)
}
