package protocol

import "fmt"

// Codec converts between chat intents, wire frames and events.
type Codec interface {
	// Name identifies the codec in configuration.
	Name() string
	// Binary reports whether frames must travel as binary messages.
	Binary() bool
	Join(name string) []byte
	Leave(name string) []byte
	Message(name, text string, reply *ReplyRef) []byte
	// Decode never fails.
	Decode(frame []byte) ChatEvent
}

const (
	CodecLine     = "line"
	CodecEnvelope = "envelope"
)

// ByName returns the codec registered under name.
func ByName(name string, d Decoder) (Codec, error) {
	switch name {
	case CodecLine, "":
		return LineCodec{Decoder: d}, nil
	case CodecEnvelope:
		return EnvelopeCodec{Decoder: d}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// LineCodec speaks the plain-text line grammar understood by existing relays.
type LineCodec struct {
	Decoder Decoder
}

func (LineCodec) Name() string { return CodecLine }
func (LineCodec) Binary() bool { return false }

func (LineCodec) Join(name string) []byte  { return []byte(EncodeJoin(name)) }
func (LineCodec) Leave(name string) []byte { return []byte(EncodeLeave(name)) }

func (LineCodec) Message(name, text string, reply *ReplyRef) []byte {
	return []byte(Encode(name, text, reply))
}

func (c LineCodec) Decode(frame []byte) ChatEvent {
	return c.Decoder.Decode(string(frame))
}

// EnvelopeCodec speaks length-prefixed envelopes. Frames that do not parse
// as envelopes are decoded with the line rules.
type EnvelopeCodec struct {
	Decoder Decoder
}

func (EnvelopeCodec) Name() string { return CodecEnvelope }
func (EnvelopeCodec) Binary() bool { return true }

func (c EnvelopeCodec) Join(name string) []byte {
	return Envelope{Type: MessageTypeJoin, ID: c.Decoder.newID(), Sender: name}.Marshal()
}

func (c EnvelopeCodec) Leave(name string) []byte {
	return Envelope{Type: MessageTypeLeave, ID: c.Decoder.newID(), Sender: name}.Marshal()
}

func (c EnvelopeCodec) Message(name, text string, reply *ReplyRef) []byte {
	return Envelope{
		Type:    MessageTypeText,
		ID:      c.Decoder.newID(),
		Sender:  name,
		Text:    text,
		ReplyTo: reply,
	}.Marshal()
}

func (c EnvelopeCodec) Decode(frame []byte) ChatEvent {
	env, err := UnmarshalEnvelope(frame)
	if err != nil {
		return c.Decoder.Decode(string(frame))
	}
	return env.toEvent(c.Decoder)
}
