package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType is the discriminator carried by an envelope.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Envelope field numbers.
const (
	fieldType   protowire.Number = 1
	fieldID     protowire.Number = 2
	fieldSender protowire.Number = 3
	fieldText   protowire.Number = 4
	fieldReply  protowire.Number = 5

	fieldReplyID     protowire.Number = 1
	fieldReplySender protowire.Number = 2
	fieldReplyText   protowire.Number = 3
)

// Wire values start at 1 so that every envelope begins with a non-zero
// type field.
const (
	wireText  uint64 = 1
	wireJoin  uint64 = 2
	wireLeave uint64 = 3
)

var errNotEnvelope = errors.New("frame is not an envelope")

// Envelope is a structured chat frame. Every field is length-prefixed, so
// no value needs escaping.
type Envelope struct {
	Type    MessageType
	ID      string
	Sender  string
	Text    string
	ReplyTo *ReplyRef
}

// Marshal encodes the envelope in protobuf wire format.
func (e Envelope) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, messageTypeToWire(e.Type))
	b = appendString(b, fieldID, e.ID)
	b = appendString(b, fieldSender, e.Sender)
	b = appendString(b, fieldText, e.Text)
	if e.ReplyTo != nil {
		var r []byte
		r = appendString(r, fieldReplyID, e.ReplyTo.ID)
		r = appendString(r, fieldReplySender, e.ReplyTo.Sender)
		r = appendString(r, fieldReplyText, e.ReplyTo.Text)
		b = protowire.AppendTag(b, fieldReply, protowire.BytesType)
		b = protowire.AppendBytes(b, r)
	}
	return b
}

// UnmarshalEnvelope parses an envelope. Unknown fields are skipped.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	num, typ, n := protowire.ConsumeTag(data)
	if n < 0 || num != fieldType || typ != protowire.VarintType {
		return e, errNotEnvelope
	}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return e, fmt.Errorf("failed to decode envelope: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, fmt.Errorf("failed to decode envelope: %w", protowire.ParseError(n))
			}
			e.Type = messageTypeFromWire(v)
			data = data[n:]
		case typ == protowire.BytesType && num >= fieldID && num <= fieldReply:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return e, fmt.Errorf("failed to decode envelope: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldReply {
				ref, err := unmarshalReply(v)
				if err != nil {
					return e, err
				}
				e.ReplyTo = &ref
				continue
			}
			if !utf8.Valid(v) {
				return e, fmt.Errorf("failed to decode envelope: field %d is not UTF-8", num)
			}
			switch num {
			case fieldID:
				e.ID = string(v)
			case fieldSender:
				e.Sender = string(v)
			case fieldText:
				e.Text = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return e, fmt.Errorf("failed to decode envelope: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return e, nil
}

func unmarshalReply(data []byte) (ReplyRef, error) {
	var r ReplyRef
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, fmt.Errorf("failed to decode reply: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return r, fmt.Errorf("failed to decode reply: %w", protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		v, n := protowire.ConsumeString(data)
		if n < 0 {
			return r, fmt.Errorf("failed to decode reply: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldReplyID:
			r.ID = v
		case fieldReplySender:
			r.Sender = v
		case fieldReplyText:
			r.Text = v
		}
	}
	return r, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// messageTypeToWire converts MessageType to its wire value.
// Unknown types are sent as text rather than rejected.
func messageTypeToWire(mt MessageType) uint64 {
	switch mt {
	case MessageTypeJoin:
		return wireJoin
	case MessageTypeLeave:
		return wireLeave
	default:
		return wireText
	}
}

// messageTypeFromWire converts a wire value to MessageType.
// Unknown values degrade to MessageTypeText.
func messageTypeFromWire(v uint64) MessageType {
	switch v {
	case wireJoin:
		return MessageTypeJoin
	case wireLeave:
		return MessageTypeLeave
	default:
		return MessageTypeText
	}
}

// toEvent converts a parsed envelope into a chat event.
func (e Envelope) toEvent(d Decoder) ChatEvent {
	ev := ChatEvent{
		ID:        e.ID,
		Timestamp: d.now(),
	}
	if ev.ID == "" {
		ev.ID = d.newID()
	}

	switch e.Type {
	case MessageTypeJoin:
		ev.Kind = KindSystem
		ev.Sender = SystemSender
		ev.Text = e.Sender + " " + JoinedPhrase
		ev.Hint = HintJoin
	case MessageTypeLeave:
		ev.Kind = KindSystem
		ev.Sender = SystemSender
		ev.Text = e.Sender + " " + LeftPhrase
		ev.Hint = HintLeave
	default:
		ev.Kind = KindChat
		ev.Sender = e.Sender
		ev.Text = e.Text
		ev.Hint = HintNone
		if e.ReplyTo != nil {
			ref := *e.ReplyTo
			ev.ReplyTo = &ref
		}
	}
	return ev
}
