package networking

import (
	"fmt"

	"go.dedis.ch/protobuf"
)

// Packet is the unit every protocol message travels in. Sender is the
// authenticated origin id, Tag routes the payload to the pending protocol
// instance, Round separates the message rounds within one instance.
type Packet struct {
	Sender  int32
	Tag     string
	Round   int32
	Payload []byte
}

func NewPacket(sender int32, tag string, round int32, payload []byte) *Packet {
	return &Packet{
		Sender:  sender,
		Tag:     tag,
		Round:   round,
		Payload: payload,
	}
}

func (p *Packet) Marshal() ([]byte, error) {
	return protobuf.Encode(p)
}

func (p *Packet) Unmarshal(bs []byte) error {
	return protobuf.Decode(bs, p)
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet{from=%d tag=%s round=%d len=%d}", p.Sender, p.Tag, p.Round, len(p.Payload))
}
