package sandbox

import (
	"encoding/json"
	"fmt"
	"time"

	"go.starlark.net/starlark"
)

// goToStarlark converts a Go value into its Starlark equivalent. Values
// with no direct mapping are stringified rather than rejected, since tool
// results are arbitrary.
func goToStarlark(v interface{}) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(val)
	case int:
		return starlark.MakeInt(val)
	case int64:
		return starlark.MakeInt64(val)
	case float64:
		return starlark.Float(val)
	case string:
		return starlark.String(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return starlark.MakeInt64(i)
		}
		if f, err := val.Float64(); err == nil {
			return starlark.Float(f)
		}
		return starlark.String(val.String())
	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano))
	case []interface{}:
		elems := make([]starlark.Value, len(val))
		for i, elem := range val {
			elems[i] = goToStarlark(elem)
		}
		return starlark.NewList(elems)
	case []string:
		elems := make([]starlark.Value, len(val))
		for i, elem := range val {
			elems[i] = starlark.String(elem)
		}
		return starlark.NewList(elems)
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			_ = dict.SetKey(starlark.String(k), goToStarlark(item))
		}
		return dict
	default:
		return starlark.String(fmt.Sprintf("%v", val))
	}
}

// fromStarlark converts a Starlark value back into plain Go shapes
// (string, bool, int64, float64, []interface{}, map[string]interface{}).
func fromStarlark(v starlark.Value) interface{} {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i
		}
		f, _ := starlark.AsFloat(val)
		return f
	case starlark.Float:
		return float64(val)
	case starlark.String:
		return string(val)
	case *starlark.List:
		out := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			out[i] = fromStarlark(val.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = fromStarlark(elem)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			if key, ok := item[0].(starlark.String); ok {
				out[string(key)] = fromStarlark(item[1])
			}
		}
		return out
	default:
		return val.String()
	}
}

// kwargsToMap converts builtin kwargs into a plain argument map.
func kwargsToMap(kwargs []starlark.Tuple) map[string]interface{} {
	if len(kwargs) == 0 {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(kwargs))
	for _, kv := range kwargs {
		if len(kv) != 2 {
			continue
		}
		if key, ok := kv[0].(starlark.String); ok {
			out[string(key)] = fromStarlark(kv[1])
		}
	}
	return out
}
