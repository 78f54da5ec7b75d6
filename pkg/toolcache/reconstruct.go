package toolcache

import (
	"encoding/json"
	"sync"
	"time"
)

// Reconstructor turns a raw serialized result back into its typed form.
type Reconstructor func(raw json.RawMessage) (interface{}, error)

// typeRegistry is the closed, extensible tag -> reconstructor table.
// Unknown tags degrade to a generic JSON decode, so the cache stays open
// to new result shapes without touching its read path.
type typeRegistry struct {
	mu    sync.RWMutex
	byTag map[string]Reconstructor
}

// Result-type tags written by the cache. External collaborators may
// register additional tags via Store.RegisterType.
const (
	TagString = "string"
	TagBool   = "bool"
	TagInt    = "int"
	TagFloat  = "float"
	TagTime   = "time"
	TagList   = "list"
	TagObject = "object"
)

func newTypeRegistry() *typeRegistry {
	r := &typeRegistry{byTag: make(map[string]Reconstructor)}
	r.register(TagString, decodeInto[string])
	r.register(TagBool, decodeInto[bool])
	r.register(TagInt, decodeInto[int64])
	r.register(TagFloat, decodeInto[float64])
	r.register(TagTime, decodeInto[time.Time])
	r.register(TagList, decodeInto[[]interface{}])
	r.register(TagObject, decodeInto[map[string]interface{}])
	return r
}

func (r *typeRegistry) register(tag string, fn Reconstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTag[tag] = fn
}

// reconstruct decodes raw according to its tag. Unknown tags fall back to
// a plain decode of whatever JSON is there.
func (r *typeRegistry) reconstruct(tag string, raw json.RawMessage) (interface{}, error) {
	r.mu.RLock()
	fn, ok := r.byTag[tag]
	r.mu.RUnlock()

	if !ok {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return fn(raw)
}

func decodeInto[T any](raw json.RawMessage) (interface{}, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// tagFor derives the result-type tag from a live result's dynamic type.
// Anything without a dedicated tag serializes as an opaque object.
func tagFor(v interface{}) string {
	switch v.(type) {
	case string:
		return TagString
	case bool:
		return TagBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TagInt
	case float32, float64:
		return TagFloat
	case time.Time:
		return TagTime
	case []interface{}:
		return TagList
	default:
		return TagObject
	}
}
