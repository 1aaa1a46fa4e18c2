package sample

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/dataload/tensor"
)

// jsonSample is the self-describing persisted form of a Sample, used
// by blob-stored datasets. Tensor bytes travel base64-encoded; this
// format is for storage, not for the worker/dispatcher boundary (the
// transport package substitutes shared-memory handles there).
type jsonSample struct {
	Kind   string        `json:"kind"`
	Dtype  tensor.Dtype  `json:"dtype,omitempty"`
	Shape  []int         `json:"shape,omitempty"`
	Data   []byte        `json:"data,omitempty"`
	Value  float64       `json:"value,omitempty"`
	Fields []*jsonSample `json:"fields,omitempty"`
}

func toJSONSample(s Sample) (*jsonSample, error) {
	switch s.kind {
	case KindTensor:
		return &jsonSample{
			Kind:  "tensor",
			Dtype: s.tensor.Dtype(),
			Shape: s.tensor.Shape(),
			Data:  s.tensor.Bytes(),
		}, nil
	case KindScalar:
		return &jsonSample{Kind: "scalar", Value: s.scalar}, nil
	case KindTuple:
		fields := make([]*jsonSample, len(s.fields))
		for i, f := range s.fields {
			js, err := toJSONSample(f)
			if err != nil {
				return nil, err
			}
			fields[i] = js
		}
		return &jsonSample{Kind: "tuple", Fields: fields}, nil
	default:
		return nil, fmt.Errorf("sample: cannot marshal %s sample", s.kind)
	}
}

func fromJSONSample(js *jsonSample) (Sample, error) {
	switch js.Kind {
	case "tensor":
		t, err := tensor.FromBytes(js.Dtype, js.Shape, js.Data)
		if err != nil {
			return Sample{}, err
		}
		return FromTensor(t), nil
	case "scalar":
		return FromScalar(js.Value), nil
	case "tuple":
		fields := make([]Sample, len(js.Fields))
		for i, f := range js.Fields {
			s, err := fromJSONSample(f)
			if err != nil {
				return Sample{}, err
			}
			fields[i] = s
		}
		return Tuple(fields...), nil
	default:
		return Sample{}, fmt.Errorf("sample: unknown kind %q", js.Kind)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Sample) MarshalJSON() ([]byte, error) {
	js, err := toJSONSample(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(js)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var js jsonSample
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}
	out, err := fromJSONSample(&js)
	if err != nil {
		return err
	}
	*s = out
	return nil
}
