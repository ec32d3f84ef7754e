package unityasset

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// MarshalMsgpack encodes v as MessagePack. Maps keep their field order on the
// wire. Integers are written with their full width so that decoding restores
// ValueInt and ValueUint exactly.
func MarshalMsgpack(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMsgpack(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeMsgpack writes v to w as MessagePack.
func EncodeMsgpack(w io.Writer, v Value) error {
	enc := msgpack.GetEncoder()
	enc.Reset(w)
	err := encodeMsgpack(enc, v)
	msgpack.PutEncoder(enc)
	return err
}

func encodeMsgpack(enc *msgpack.Encoder, v Value) error {
	switch v := v.(type) {
	case nil, ValueNull:
		return enc.EncodeNil()
	case ValueBool:
		return enc.EncodeBool(bool(v))
	case ValueInt:
		return enc.EncodeInt64(int64(v))
	case ValueUint:
		return enc.EncodeUint64(uint64(v))
	case ValueFloat:
		return enc.EncodeFloat64(float64(v))
	case ValueString:
		return enc.EncodeString(string(v))
	case ValueBytes:
		if v == nil {
			v = ValueBytes{}
		}
		return enc.EncodeBytes(v)
	case ValueArray:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for _, e := range v {
			if err := encodeMsgpack(enc, e); err != nil {
				return err
			}
		}
		return nil
	case ValueMap:
		if err := enc.EncodeMapLen(len(v)); err != nil {
			return err
		}
		for _, f := range v {
			if err := enc.EncodeString(f.Name); err != nil {
				return err
			}
			if err := encodeMsgpack(enc, f.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot encode value of type %s", v.Type())
}

// UnmarshalMsgpack decodes a Value previously encoded by MarshalMsgpack.
func UnmarshalMsgpack(b []byte) (Value, error) {
	var r bytes.Reader
	r.Reset(b)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	v, err := decodeMsgpack(dec)
	msgpack.PutDecoder(dec)
	return v, err
}

func decodeMsgpack(dec *msgpack.Decoder) (Value, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return ValueNull{}, nil
		}
		m := make(ValueMap, n)
		for i := range m {
			if m[i].Name, err = dec.DecodeString(); err != nil {
				return nil, err
			}
			if m[i].Value, err = decodeMsgpack(dec); err != nil {
				return nil, err
			}
		}
		return m, nil
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return ValueNull{}, nil
		}
		a := make(ValueArray, n)
		for i := range a {
			if a[i], err = decodeMsgpack(dec); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
	iv, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	switch iv := iv.(type) {
	case nil:
		return ValueNull{}, nil
	case bool:
		return ValueBool(iv), nil
	case int8:
		return ValueInt(iv), nil
	case int16:
		return ValueInt(iv), nil
	case int32:
		return ValueInt(iv), nil
	case int64:
		return ValueInt(iv), nil
	case uint8:
		return ValueInt(iv), nil
	case uint16:
		return ValueInt(iv), nil
	case uint32:
		return ValueInt(iv), nil
	case uint64:
		return ValueUint(iv), nil
	case float32:
		return ValueFloat(iv), nil
	case float64:
		return ValueFloat(iv), nil
	case string:
		return ValueString(iv), nil
	case []byte:
		return ValueBytes(iv), nil
	}
	return nil, fmt.Errorf("unexpected msgpack value of type %T", iv)
}
