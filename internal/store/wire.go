package store

import (
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// Value wraps a [plistdiff.Value] with a MessagePack encoding that keeps the
// variant of every node. A nil Value encodes as nil.
//
// Every node is written as a two element array: a one byte tag followed by
// the payload. Dictionaries are written with sorted keys so equal trees
// produce equal bytes.
type Value struct {
	Value plistdiff.Value
}

const (
	tagString uint8 = iota + 1
	tagBoolean
	tagData
	tagDate
	tagInt
	tagUint
	tagReal
	tagUID
	tagArray
	tagDictionary
)

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if v.Value == nil {
		return enc.EncodeNil()
	}
	return encodeValue(enc, v.Value)
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		v.Value = nil
		return dec.DecodeNil()
	}
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	v.Value = decoded
	return nil
}

func encodeValue(enc *msgpack.Encoder, value plistdiff.Value) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	switch v := value.(type) {
	case plistdiff.String:
		return encodeTagged(enc, tagString, func() error { return enc.EncodeString(string(v)) })
	case plistdiff.Boolean:
		return encodeTagged(enc, tagBoolean, func() error { return enc.EncodeBool(bool(v)) })
	case plistdiff.Data:
		return encodeTagged(enc, tagData, func() error { return enc.EncodeBytes(v) })
	case plistdiff.Date:
		return encodeTagged(enc, tagDate, func() error { return enc.EncodeTime(v.Time) })
	case plistdiff.Integer:
		if i, ok := v.Int64(); ok && v.Negative() {
			return encodeTagged(enc, tagInt, func() error { return enc.EncodeInt(i) })
		}
		u, _ := v.Uint64()
		return encodeTagged(enc, tagUint, func() error { return enc.EncodeUint(u) })
	case plistdiff.Real:
		return encodeTagged(enc, tagReal, func() error { return enc.EncodeFloat64(float64(v)) })
	case plistdiff.UID:
		return encodeTagged(enc, tagUID, func() error { return enc.EncodeUint(uint64(v)) })
	case plistdiff.Array:
		return encodeTagged(enc, tagArray, func() error {
			if err := enc.EncodeArrayLen(len(v)); err != nil {
				return err
			}
			for _, child := range v {
				if err := encodeValue(enc, child); err != nil {
					return err
				}
			}
			return nil
		})
	case plistdiff.Dictionary:
		return encodeTagged(enc, tagDictionary, func() error {
			if err := enc.EncodeMapLen(len(v)); err != nil {
				return err
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if err := enc.EncodeString(k); err != nil {
					return err
				}
				if err := encodeValue(enc, v[k]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return fmt.Errorf("cannot encode value of type %T", value)
}

func encodeTagged(enc *msgpack.Encoder, tag uint8, payload func() error) error {
	if err := enc.EncodeUint8(tag); err != nil {
		return err
	}
	return payload()
}

func decodeValue(dec *msgpack.Decoder) (plistdiff.Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("%w: value node has %d elements", ErrInvalidRevision, n)
	}
	tag, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagString:
		s, err := dec.DecodeString()
		return plistdiff.String(s), err
	case tagBoolean:
		b, err := dec.DecodeBool()
		return plistdiff.Boolean(b), err
	case tagData:
		b, err := dec.DecodeBytes()
		return plistdiff.Data(b), err
	case tagDate:
		t, err := dec.DecodeTime()
		return plistdiff.NewDate(t), err
	case tagInt:
		i, err := dec.DecodeInt64()
		return plistdiff.Int(i), err
	case tagUint:
		u, err := dec.DecodeUint64()
		return plistdiff.Uint(u), err
	case tagReal:
		f, err := dec.DecodeFloat64()
		return plistdiff.Real(f), err
	case tagUID:
		u, err := dec.DecodeUint64()
		return plistdiff.UID(u), err
	case tagArray:
		length, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return plistdiff.Array(nil), nil
		}
		out := make(plistdiff.Array, length)
		for i := range out {
			if out[i], err = decodeValue(dec); err != nil {
				return nil, err
			}
		}
		return out, nil
	case tagDictionary:
		length, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return plistdiff.Dictionary(nil), nil
		}
		out := make(plistdiff.Dictionary, length)
		for i := 0; i < length; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return nil, err
			}
			if out[k], err = decodeValue(dec); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown value tag %d", ErrInvalidRevision, tag)
}
