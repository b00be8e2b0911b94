package rbc

import (
	"go.dedis.ch/protobuf"
)

// Message kinds of the plain Bracha protocol.
const (
	msgPropose int32 = iota + 1
	msgEcho
	msgReady
)

// Message is a Bracha protocol message. Origin is the player whose value is
// being agreed on and Tag separates concurrent broadcasts from the same
// origin; together they identify the protocol instance. Echo and ready
// reports carry the full payload so delivery never needs a fetch round.
type Message struct {
	Kind    int32
	Origin  int32
	Tag     string
	Payload []byte
}

func (m *Message) Marshal() ([]byte, error) {
	return protobuf.Encode(m)
}

func (m *Message) Unmarshal(bs []byte) error {
	return protobuf.Decode(bs, m)
}

// Coded message kinds; see CodedBroadcaster.
const (
	msgCodedPropose int32 = iota + 11
	msgCodedEcho
	msgCodedReady
)

// CodedMessage is a message of the coded broadcast for long payloads. The
// propose carries the payload once; echoes carry the digest plus the full
// share vector; readies carry a single share.
type CodedMessage struct {
	Kind    int32
	Origin  int32
	Tag     string
	Digest  []byte
	Payload []byte
	Shares  [][]byte
	Index   int32
	Share   []byte
}

func (m *CodedMessage) Marshal() ([]byte, error) {
	return protobuf.Encode(m)
}

func (m *CodedMessage) Unmarshal(bs []byte) error {
	return protobuf.Decode(bs, m)
}
