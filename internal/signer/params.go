package signer

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Parameter kinds carried in a signed query. Only the value types a
// database/sql driver receives are representable, so a decoded parameter
// list is identical to the one that was signed.
const (
	kindNull   = "null"
	kindInt    = "int"
	kindFloat  = "float"
	kindBool   = "bool"
	kindString = "string"
	kindBytes  = "bytes"
	kindTime   = "time"
)

// wireParam is the JSON form of a single bind parameter.
type wireParam struct {
	Kind  string `json:"k"`
	Value string `json:"v,omitempty"`
}

func encodeParams(params []any) ([]wireParam, error) {
	out := make([]wireParam, 0, len(params))
	for i, p := range params {
		wp, err := encodeParam(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, wp)
	}
	return out, nil
}

func encodeParam(v any) (wireParam, error) {
	switch val := v.(type) {
	case nil:
		return wireParam{Kind: kindNull}, nil
	case int64:
		return wireParam{Kind: kindInt, Value: strconv.FormatInt(val, 10)}, nil
	case int:
		return wireParam{Kind: kindInt, Value: strconv.FormatInt(int64(val), 10)}, nil
	case int32:
		return wireParam{Kind: kindInt, Value: strconv.FormatInt(int64(val), 10)}, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return wireParam{}, fmt.Errorf("non-finite float %v", val)
		}
		return wireParam{Kind: kindFloat, Value: strconv.FormatFloat(val, 'g', -1, 64)}, nil
	case float32:
		return encodeParam(float64(val))
	case bool:
		return wireParam{Kind: kindBool, Value: strconv.FormatBool(val)}, nil
	case string:
		return wireParam{Kind: kindString, Value: val}, nil
	case []byte:
		return wireParam{Kind: kindBytes, Value: base64.RawURLEncoding.EncodeToString(val)}, nil
	case time.Time:
		return wireParam{Kind: kindTime, Value: val.Format(time.RFC3339Nano)}, nil
	default:
		return wireParam{}, fmt.Errorf("unsupported parameter type %T", v)
	}
}

func decodeParams(wire []wireParam) ([]any, error) {
	out := make([]any, 0, len(wire))
	for i, wp := range wire {
		v, err := decodeParam(wp)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeParam(wp wireParam) (any, error) {
	switch wp.Kind {
	case kindNull:
		return nil, nil
	case kindInt:
		return strconv.ParseInt(wp.Value, 10, 64)
	case kindFloat:
		return strconv.ParseFloat(wp.Value, 64)
	case kindBool:
		return strconv.ParseBool(wp.Value)
	case kindString:
		return wp.Value, nil
	case kindBytes:
		return base64.RawURLEncoding.DecodeString(wp.Value)
	case kindTime:
		return time.Parse(time.RFC3339Nano, wp.Value)
	default:
		return nil, fmt.Errorf("unknown parameter kind %q", wp.Kind)
	}
}
