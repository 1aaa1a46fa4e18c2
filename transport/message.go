// Package transport moves ticketed messages across a process boundary.
//
// Nested payloads (tuples, batches) are serialized transparently: the
// non-tensor structure goes through the general codec, while every
// tensor leaf that lives in a registered shared segment is substituted
// by its fixed-size handle. Reconstructing from a handle is a zero-copy
// view over the same segment; only tensors outside any segment fall
// back to inline byte transport.
package transport

import (
	"fmt"

	"github.com/hupe1980/dataload/codec"
	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/shm"
	"github.com/hupe1980/dataload/tensor"
)

// Message is one ticketed payload crossing the boundary.
type Message struct {
	Ticket uint64
	// Err carries a worker-side failure to the consumer. A message
	// with a non-empty Err has no usable Body.
	Err string
	// Body is the sample or batch being transported.
	Body sample.Sample
}

const (
	wireKindTensor uint8 = 1
	wireKindScalar uint8 = 2
	wireKindTuple  uint8 = 3
)

// wireNode mirrors the sample variant on the wire. Exactly one of
// Handle/Inline is set for a tensor leaf.
type wireNode struct {
	Kind   uint8       `json:"kind"`
	Handle *shm.Handle `json:"handle,omitempty"`
	Inline *wireTensor `json:"inline,omitempty"`
	Scalar float64     `json:"scalar,omitempty"`
	Fields []wireNode  `json:"fields,omitempty"`
}

// wireTensor is the inline fallback: a full byte copy of a tensor that
// is not backed by a registered segment.
type wireTensor struct {
	Dtype tensor.Dtype `json:"dtype"`
	Shape []int        `json:"shape"`
	Data  []byte       `json:"data"`
}

type wireMessage struct {
	Ticket uint64    `json:"ticket"`
	Err    string    `json:"err,omitempty"`
	Body   *wireNode `json:"body,omitempty"`
}

// MessageCodec serializes messages for one side of a connection. The
// registry is consulted to substitute segment-backed tensors by
// handles on encode and to resolve handles on decode.
type MessageCodec struct {
	payload     codec.Codec
	registry    *shm.Registry
	compression CompressionType
}

// MessageCodecOption configures a MessageCodec.
type MessageCodecOption func(*MessageCodec)

// WithPayloadCodec sets the codec for the non-tensor payload. Defaults
// to codec.Default.
func WithPayloadCodec(c codec.Codec) MessageCodecOption {
	return func(mc *MessageCodec) {
		if c != nil {
			mc.payload = c
		}
	}
}

// WithCompression sets frame compression. Defaults to CompressionNone.
func WithCompression(ct CompressionType) MessageCodecOption {
	return func(mc *MessageCodec) { mc.compression = ct }
}

// NewMessageCodec creates a codec bound to the given registry. A nil
// registry disables handle substitution entirely (every tensor is
// copied inline).
func NewMessageCodec(registry *shm.Registry, optFns ...MessageCodecOption) *MessageCodec {
	mc := &MessageCodec{
		payload:     codec.Default,
		registry:    registry,
		compression: CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(mc)
		}
	}
	return mc
}

// Encode serializes a message into one frame.
func (mc *MessageCodec) Encode(msg Message) ([]byte, error) {
	wm := wireMessage{Ticket: msg.Ticket, Err: msg.Err}
	if msg.Body.Kind() != sample.KindInvalid {
		node, err := mc.encodeNode(msg.Body)
		if err != nil {
			return nil, err
		}
		wm.Body = node
	}

	payload, err := mc.payload.Marshal(wm)
	if err != nil {
		return nil, fmt.Errorf("transport: encode message: %w", err)
	}
	return encodeFrame(payload, mc.payload.Name(), mc.compression)
}

// Decode deserializes one frame into a message, resolving handles to
// zero-copy views via the registry.
func (mc *MessageCodec) Decode(frame []byte) (Message, error) {
	payload, codecName, err := decodeFrame(frame)
	if err != nil {
		return Message{}, err
	}

	dec := mc.payload
	if codecName != dec.Name() {
		named, ok := codec.ByName(codecName)
		if !ok {
			return Message{}, fmt.Errorf("transport: unknown payload codec %q", codecName)
		}
		dec = named
	}

	var wm wireMessage
	if err := dec.Unmarshal(payload, &wm); err != nil {
		return Message{}, fmt.Errorf("transport: decode message: %w", err)
	}

	msg := Message{Ticket: wm.Ticket, Err: wm.Err}
	if wm.Body != nil {
		body, err := mc.decodeNode(*wm.Body)
		if err != nil {
			return Message{}, err
		}
		msg.Body = body
	}
	return msg, nil
}

func (mc *MessageCodec) encodeNode(s sample.Sample) (*wireNode, error) {
	switch s.Kind() {
	case sample.KindTensor:
		t := s.MustTensor()
		if mc.registry != nil {
			if h, ok := mc.registry.Lookup(t); ok {
				return &wireNode{Kind: wireKindTensor, Handle: &h}, nil
			}
		}
		return &wireNode{Kind: wireKindTensor, Inline: &wireTensor{
			Dtype: t.Dtype(),
			Shape: t.Shape(),
			Data:  t.Bytes(),
		}}, nil

	case sample.KindScalar:
		v, _ := s.Scalar()
		return &wireNode{Kind: wireKindScalar, Scalar: v}, nil

	case sample.KindTuple:
		fs, _ := s.Fields()
		fields := make([]wireNode, len(fs))
		for i, f := range fs {
			n, err := mc.encodeNode(f)
			if err != nil {
				return nil, err
			}
			fields[i] = *n
		}
		return &wireNode{Kind: wireKindTuple, Fields: fields}, nil

	default:
		return nil, fmt.Errorf("transport: cannot encode %s sample", s.Kind())
	}
}

func (mc *MessageCodec) decodeNode(n wireNode) (sample.Sample, error) {
	switch n.Kind {
	case wireKindTensor:
		switch {
		case n.Handle != nil:
			if mc.registry == nil {
				return sample.Sample{}, fmt.Errorf("transport: received handle for segment %d without a registry", n.Handle.SegmentID)
			}
			t, err := mc.registry.Attach(*n.Handle)
			if err != nil {
				return sample.Sample{}, err
			}
			return sample.FromTensor(t), nil
		case n.Inline != nil:
			t, err := tensor.FromBytes(n.Inline.Dtype, n.Inline.Shape, n.Inline.Data)
			if err != nil {
				return sample.Sample{}, err
			}
			return sample.FromTensor(t), nil
		default:
			return sample.Sample{}, fmt.Errorf("transport: tensor node without handle or inline data")
		}

	case wireKindScalar:
		return sample.FromScalar(n.Scalar), nil

	case wireKindTuple:
		fields := make([]sample.Sample, len(n.Fields))
		for i, f := range n.Fields {
			s, err := mc.decodeNode(f)
			if err != nil {
				return sample.Sample{}, err
			}
			fields[i] = s
		}
		return sample.Tuple(fields...), nil

	default:
		return sample.Sample{}, fmt.Errorf("transport: unknown wire kind %d", n.Kind)
	}
}
