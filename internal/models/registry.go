package models

import orderedmap "github.com/wk8/go-ordered-map/v2"

// EaseMap is the saved ease registry: definitions keyed by id in display
// order.
type EaseMap = orderedmap.OrderedMap[string, EaseDef]

// TriggerMap is the saved trigger registry: definitions keyed by id in
// display order.
type TriggerMap = orderedmap.OrderedMap[string, TriggerDef]

// NewEaseMap returns an empty ease registry.
func NewEaseMap() *EaseMap {
	return orderedmap.New[string, EaseDef]()
}

// NewTriggerMap returns an empty trigger registry.
func NewTriggerMap() *TriggerMap {
	return orderedmap.New[string, TriggerDef]()
}

// Keys returns the ids of m in display order. A nil registry has none.
func Keys[V any](m *orderedmap.OrderedMap[string, V]) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, m.Len())
	for p := m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Lookup returns the value stored under id. A nil registry holds nothing.
func Lookup[V any](m *orderedmap.OrderedMap[string, V], id string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	return m.Get(id)
}

// Count returns the number of entries of m.
func Count[V any](m *orderedmap.OrderedMap[string, V]) int {
	if m == nil {
		return 0
	}
	return m.Len()
}

// IndexOf returns the display position of id, or -1.
func IndexOf[V any](m *orderedmap.OrderedMap[string, V], id string) int {
	if m == nil {
		return -1
	}
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		if p.Key == id {
			return i
		}
		i++
	}
	return -1
}

// InsertAt stores v under id at display position i. An existing id is
// moved there; a position past the end appends.
func InsertAt[V any](m *orderedmap.OrderedMap[string, V], i int, id string, v V) {
	m.Delete(id)
	var mark *orderedmap.Pair[string, V]
	if i >= 0 {
		mark = m.Oldest()
		for ; mark != nil && i > 0; i-- {
			mark = mark.Next()
		}
	}
	m.Set(id, v)
	if mark != nil {
		_ = m.MoveBefore(id, mark.Key)
	}
}

// Clone copies m. Empty registries clone to nil so they stay out of the
// persisted form.
func Clone[V any](m *orderedmap.OrderedMap[string, V], dup func(V) V) *orderedmap.OrderedMap[string, V] {
	if Count(m) == 0 {
		return nil
	}
	out := orderedmap.New[string, V](m.Len())
	for p := m.Oldest(); p != nil; p = p.Next() {
		v := p.Value
		if dup != nil {
			v = dup(v)
		}
		out.Set(p.Key, v)
	}
	return out
}
