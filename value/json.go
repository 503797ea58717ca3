package value

import (
	"bytes"
	"fmt"
	"math"

	"github.com/bytedance/sonic"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/wippyai/wasm-bridge/errors"
)

// Normalize converts v to a JSON-representable tree. BigInt is narrowed to
// float64, non-finite numbers become nil, undefined properties are dropped,
// and objects become ordered maps. An object that contains itself is an error.
func Normalize(v any) (any, error) {
	return normalize(v, make(map[*Object]bool))
}

// normalize tracks the objects on the current path in active. Shared
// references that are not cycles are allowed.
func normalize(v any, active map[*Object]bool) (any, error) {
	switch x := v.(type) {
	case UndefinedType, nil:
		return nil, nil
	case BigInt:
		return float64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, nil
		}
		return x, nil
	case *Object:
		if active[x] {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Detail("cyclic object value").
				Build()
		}
		active[x] = true
		defer delete(active, x)

		out := orderedmap.New[string, any](x.Len())
		var err error
		x.Range(func(k string, pv any) bool {
			if _, undef := pv.(UndefinedType); undef {
				return true
			}
			var nv any
			if nv, err = normalize(pv, active); err != nil {
				return false
			}
			out.Set(k, nv)
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case error:
		return x.Error(), nil
	default:
		return v, nil
	}
}

// ToJSON renders v as JSON with object properties in insertion order.
// A top-level undefined renders as the bare word undefined.
func ToJSON(v any) (string, error) {
	if _, ok := v.(UndefinedType); ok {
		return "undefined", nil
	}
	nv, err := Normalize(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := encode(&buf, nv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	om, ok := v.(*orderedmap.OrderedMap[string, any])
	if !ok {
		b, err := sonic.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %T: %w", v, err)
		}
		buf.Write(b)
		return nil
	}

	buf.WriteByte('{')
	for p := om.Oldest(); p != nil; p = p.Next() {
		if buf.Bytes()[buf.Len()-1] != '{' {
			buf.WriteByte(',')
		}
		key, err := sonic.Marshal(p.Key)
		if err != nil {
			return fmt.Errorf("encode key %q: %w", p.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encode(buf, p.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
