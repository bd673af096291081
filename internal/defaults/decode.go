package defaults

import (
	"errors"
	"fmt"
	"os"
	"time"

	"howett.net/plist"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// ErrUnsupportedType is returned when decoded plist data contains a type
// that has no plistdiff counterpart.
var ErrUnsupportedType = errors.New("unsupported plist type")

// Decode parses a binary, XML or OpenStep property list.
func Decode(data []byte) (plistdiff.Value, error) {
	var native any
	if _, err := plist.Unmarshal(data, &native); err != nil {
		return nil, err
	}
	return FromNative(native)
}

// DecodeFile parses the property list stored at path.
func DecodeFile(path string) (plistdiff.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// FromNative converts the generic value produced by the plist decoder.
func FromNative(native any) (plistdiff.Value, error) {
	switch v := native.(type) {
	case string:
		return plistdiff.String(v), nil
	case bool:
		return plistdiff.Boolean(v), nil
	case []byte:
		return plistdiff.Data(v), nil
	case time.Time:
		return plistdiff.NewDate(v), nil
	case int64:
		return plistdiff.Int(v), nil
	case uint64:
		return plistdiff.Uint(v), nil
	case int:
		return plistdiff.Int(int64(v)), nil
	case float64:
		return plistdiff.Real(v), nil
	case float32:
		return plistdiff.Real(float64(v)), nil
	case plist.UID:
		return plistdiff.UID(v), nil
	case []any:
		out := make(plistdiff.Array, len(v))
		for i, child := range v {
			converted, err := FromNative(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	case map[string]any:
		out := make(plistdiff.Dictionary, len(v))
		for k, child := range v {
			converted, err := FromNative(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, native)
	}
}
