package rbc

import (
	"bytes"
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"asyncmpc/logging"
	"asyncmpc/rscode"
	"asyncmpc/tools"
)

// CodedBroadcaster is the reliable broadcast variant for long payloads. The
// payload travels in full only in the origin's propose; echoes carry a
// digest and the Reed-Solomon share vector, readies carry one share each, so
// the per-player ready traffic is a fraction of the payload size. Delivery
// reconstructs from t+1 shares and re-checks the digest.
type CodedBroadcaster struct {
	n, t      int
	id        int32
	out       func([]byte) error
	code      *rscode.Code
	instances *tools.ConcurrentMap[string, *codedInstance]
	log       zerolog.Logger
}

func NewCodedBroadcaster(n, t int, id int32, out func([]byte) error) (*CodedBroadcaster, error) {
	if n < 3*t+1 {
		return nil, xerrors.Errorf("n=%d t=%d: %w", n, t, ErrGroupTooSmall)
	}
	code, err := rscode.New(t+1, n)
	if err != nil {
		return nil, err
	}
	return &CodedBroadcaster{
		n:         n,
		t:         t,
		id:        id,
		out:       out,
		code:      code,
		instances: tools.NewConcurrentMap[string, *codedInstance](),
		log:       logging.GetLogger(id),
	}, nil
}

func (b *CodedBroadcaster) Broadcast(tag string, payload []byte) error {
	msg := &CodedMessage{Kind: msgCodedPropose, Origin: b.id, Tag: tag, Payload: payload}
	bs, err := msg.Marshal()
	if err != nil {
		return err
	}
	return b.out(bs)
}

func (b *CodedBroadcaster) Deliver(ctx context.Context, origin int32, tag string) ([]byte, error) {
	inst := b.instance(origin, tag)
	select {
	case <-inst.done:
		return inst.value, inst.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *CodedBroadcaster) HandleMessage(from int32, bs []byte) error {
	msg := &CodedMessage{}
	if err := msg.Unmarshal(bs); err != nil {
		return xerrors.Errorf("decoding coded rbc message: %w", err)
	}
	inst := b.instance(msg.Origin, msg.Tag)
	return inst.handle(b, from, msg)
}

func (b *CodedBroadcaster) instance(origin int32, tag string) *codedInstance {
	return b.instances.GetOrSet(instanceKey(origin, tag), func() *codedInstance {
		return &codedInstance{
			origin:    origin,
			tag:       tag,
			echoes:    make(map[string]map[int32]struct{}),
			readies:   make(map[string]map[int32]struct{}),
			echoedBy:  make(map[int32]string),
			readiedBy: make(map[int32]string),
			shares:    make(map[string]map[int32][]byte),
			done:      make(chan struct{}),
		}
	})
}

func (b *CodedBroadcaster) send(msg *CodedMessage) error {
	bs, err := msg.Marshal()
	if err != nil {
		return err
	}
	return b.out(bs)
}

type codedInstance struct {
	sync.Mutex
	origin int32
	tag    string
	state  State

	echoes    map[string]map[int32]struct{}
	readies   map[string]map[int32]struct{}
	echoedBy  map[int32]string
	readiedBy map[int32]string
	shares    map[string]map[int32][]byte // digest -> share index -> data
	ownShare  map[string][]byte           // digest -> this player's share
	echoSent  bool
	readySent bool

	done  chan struct{}
	value []byte
	err   error
}

func (inst *codedInstance) handle(b *CodedBroadcaster, from int32, msg *CodedMessage) error {
	inst.Lock()
	defer inst.Unlock()

	if inst.state == StateDelivered || inst.err != nil {
		return nil
	}

	switch msg.Kind {
	case msgCodedPropose:
		return inst.onPropose(b, from, msg)
	case msgCodedEcho:
		return inst.onEcho(b, from, msg)
	case msgCodedReady:
		return inst.onReady(b, from, msg)
	default:
		return xerrors.Errorf("unknown coded rbc message kind %d", msg.Kind)
	}
}

// onPropose encodes the payload and echoes the digest with the full share
// vector, so every player learns its own share even if the propose misses it.
func (inst *codedInstance) onPropose(b *CodedBroadcaster, from int32, msg *CodedMessage) error {
	if from != inst.origin {
		return nil
	}
	d := digestOf(msg.Payload)
	shares, err := b.code.Encode(msg.Payload)
	if err != nil {
		return err
	}
	if inst.echoSent {
		return nil
	}
	inst.echoSent = true
	inst.state = StateWaitEcho

	vec := make([][]byte, len(shares))
	for i, s := range shares {
		vec[i] = s.Data
	}
	return b.send(&CodedMessage{
		Kind:   msgCodedEcho,
		Origin: inst.origin,
		Tag:    inst.tag,
		Digest: []byte(d),
		Shares: vec,
	})
}

func (inst *codedInstance) onEcho(b *CodedBroadcaster, from int32, msg *CodedMessage) error {
	d := string(msg.Digest)
	if len(msg.Shares) != b.n {
		return xerrors.Errorf("echo with %d shares, want %d", len(msg.Shares), b.n)
	}
	if _, ok := inst.echoedBy[from]; ok {
		return nil
	}
	inst.echoedBy[from] = d
	addReport(inst.echoes, d, from)

	// Remember our own share from the first echo carrying this digest.
	if inst.ownShare == nil {
		inst.ownShare = make(map[string][]byte)
	}
	if _, ok := inst.ownShare[d]; !ok {
		inst.ownShare[d] = msg.Shares[b.id-1]
	}

	if len(inst.echoes[d]) >= (b.n+b.t+2)/2 {
		return inst.maybeReady(b, d)
	}
	return nil
}

func (inst *codedInstance) onReady(b *CodedBroadcaster, from int32, msg *CodedMessage) error {
	d := string(msg.Digest)
	if _, ok := inst.readiedBy[from]; ok {
		return nil
	}
	inst.readiedBy[from] = d
	addReport(inst.readies, d, from)

	if inst.shares[d] == nil {
		inst.shares[d] = make(map[int32][]byte)
	}
	inst.shares[d][msg.Index] = msg.Share

	if len(inst.readies[d]) >= b.t+1 {
		if err := inst.maybeReady(b, d); err != nil {
			return err
		}
	}
	if len(inst.readies[d]) >= 2*b.t+1 && len(inst.shares[d]) >= b.t+1 {
		return inst.tryDeliver(b, d)
	}
	return nil
}

// maybeReady sends this player's own share for the digest. When the echo
// phase never supplied one, delivery proceeds on other players' shares.
func (inst *codedInstance) maybeReady(b *CodedBroadcaster, d string) error {
	if inst.readySent {
		return nil
	}
	share, ok := inst.ownShare[d]
	if !ok {
		return nil
	}
	inst.readySent = true
	if inst.state == StateInit || inst.state == StateWaitEcho {
		inst.state = StateWaitReady
	}
	return b.send(&CodedMessage{
		Kind:   msgCodedReady,
		Origin: inst.origin,
		Tag:    inst.tag,
		Digest: []byte(d),
		Index:  b.id - 1,
		Share:  share,
	})
}

// tryDeliver reconstructs and digest-checks the payload. A failed decode
// just waits for more shares; Berlekamp-Welch corrects lies once enough
// honest shares arrive.
func (inst *codedInstance) tryDeliver(b *CodedBroadcaster, d string) error {
	in := make([]rscode.Share, 0, len(inst.shares[d]))
	for idx, data := range inst.shares[d] {
		in = append(in, rscode.Share{Index: idx, Data: data})
	}
	payload, err := b.code.Decode(in)
	if err != nil {
		b.log.Debug().Err(err).Msg("decode failed, waiting for more shares")
		return nil
	}
	if !bytes.Equal([]byte(digestOf(payload)), []byte(d)) {
		b.log.Debug().Msg("reconstructed payload does not match digest")
		return nil
	}
	inst.state = StateDelivered
	inst.value = payload
	close(inst.done)
	return nil
}
