package state

import (
	"encoding/json"
	"maps"
	"reflect"
)

// Snapshot maps resource names to their current value. A nil value means the
// state is unknown. Snapshots handed out by a Cache are copies.
type Snapshot map[string]any

// Clone returns a copy of s. Values are scalars, so a shallow copy is enough.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}

// Diff returns the entries of next that are missing from prev or whose value
// differs. When includeDeleted is set, names present in prev but absent from
// next are included with a nil value.
func Diff(prev, next Snapshot, includeDeleted bool) Snapshot {
	diff := Snapshot{}
	for name, value := range next {
		old, ok := prev[name]
		if !ok || !Equal(old, value) {
			diff[name] = value
		}
	}
	if includeDeleted {
		for name := range prev {
			if _, ok := next[name]; !ok {
				diff[name] = nil
			}
		}
	}
	return diff
}

// SameNames reports whether a and b hold exactly the same set of names.
func SameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[name] = struct{}{}
	}
	for _, name := range b {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}

// Equal compares two state values by value. Numbers compare numerically
// regardless of their Go type, so 70 equals 70.0 after a JSON round trip.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
