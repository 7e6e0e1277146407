package value

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal values encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("value: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// wireValue is the CBOR form of a Value: a map keyed by small integers
// holding the kind and the single active payload.
type wireValue struct {
	Kind    Kind     `cbor:"1,keyasint"`
	Bool    bool     `cbor:"2,keyasint,omitempty"`
	Integer int64    `cbor:"3,keyasint,omitempty"`
	Number  *float64 `cbor:"4,keyasint,omitempty"`
	Text    string   `cbor:"5,keyasint,omitempty"`
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	if !v.kind.Valid() {
		return nil, fmt.Errorf("value: cannot encode %v", v.kind)
	}
	w := wireValue{
		Kind:    v.kind,
		Bool:    v.b,
		Integer: v.i,
		Text:    v.s,
	}
	// Always present for numbers: omitempty would drop -0.
	if v.kind == KindNumber {
		n := v.n
		w.Number = &n
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("value: unmarshal: %w", err)
	}
	switch w.Kind {
	case KindNil:
		*v = Nil()
	case KindBool:
		*v = Bool(w.Bool)
	case KindInteger:
		*v = Integer(w.Integer)
	case KindNumber:
		if w.Number == nil {
			return fmt.Errorf("value: unmarshal: number without payload")
		}
		*v = Number(*w.Number)
	case KindText:
		*v = Text(w.Text)
	default:
		return fmt.Errorf("value: unmarshal: unknown kind %d", uint8(w.Kind))
	}
	return nil
}

// Marshal serializes a Value to canonical CBOR bytes.
func Marshal(v Value) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal deserializes a Value from CBOR bytes.
func Unmarshal(data []byte) (Value, error) {
	var v Value
	if err := cbor.Unmarshal(data, &v); err != nil {
		return Nil(), err
	}
	return v, nil
}

// MarshalSlice serializes an ordered sequence of values.
func MarshalSlice(vs []Value) ([]byte, error) {
	return cborEncMode.Marshal(vs)
}

// UnmarshalSlice deserializes an ordered sequence of values.
func UnmarshalSlice(data []byte) ([]Value, error) {
	var vs []Value
	if err := cbor.Unmarshal(data, &vs); err != nil {
		return nil, err
	}
	return vs, nil
}
