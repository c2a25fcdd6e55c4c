package tree

import "sort"

// Content is the attribute bag carried by a node. A missing attribute and an
// attribute holding nil are equivalent.
type Content map[string]any

// Get returns the value of an attribute, or nil.
func (c Content) Get(name string) any {
	if c == nil {
		return nil
	}
	return c[name]
}

// StringAttr returns a string attribute, or "" if absent or not a string.
func (c Content) StringAttr(name string) string {
	s, _ := c.Get(name).(string)
	return s
}

// Set assigns an attribute. A nil value deletes it.
func (c Content) Set(name string, value any) {
	if value == nil {
		delete(c, name)
		return
	}
	c[name] = value
}

// Keys returns the attribute names in sorted order.
func (c Content) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two attribute bags, treating nil values as absent.
func (c Content) Equal(other Content) bool {
	for k, v := range c {
		if !valuesEqual(v, other.Get(k)) {
			return false
		}
	}
	for k, v := range other {
		if !valuesEqual(v, c.Get(k)) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Maps and slices are copied recursively; any
// other value is treated as immutable and shared.
func (c Content) Clone() Content {
	if c == nil {
		return Content{}
	}
	out := make(Content, len(c))
	for k, v := range c {
		if v == nil {
			continue
		}
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the map and slice shapes used in attribute values.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Content:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = CloneValue(inner)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, inner := range val {
			out[k] = inner
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = CloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []int:
		return append([]int(nil), val...)
	default:
		return v
	}
}
