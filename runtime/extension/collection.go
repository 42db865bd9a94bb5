package extension

import "reflect"

// Collection holds the extensions of one workflow instance. Lookups are cached
// for the lifetime of the collection; it is owned by a single instance and is
// not synchronised.
type Collection struct {
	items []interface{}
	types []reflect.Type
	cache map[Tag][]interface{}
}

func (c *Collection) add(item interface{}, matchType reflect.Type) {
	c.items = append(c.items, item)
	c.types = append(c.types, matchType)
}

// All returns every extension of the collection.
func (c *Collection) All() []interface{} {
	if c == nil {
		return nil
	}
	return append([]interface{}(nil), c.items...)
}

// Lookup returns the extensions providing the capability.
func (c *Collection) Lookup(capability Capability) []interface{} {
	if c == nil {
		return nil
	}
	if cached, ok := c.cache[capability.Tag]; ok {
		return cached
	}
	var ret []interface{}
	for i, item := range c.items {
		if capability.Matches(c.types[i]) || capability.Matches(reflect.TypeOf(item)) {
			ret = append(ret, item)
		}
	}
	c.cache[capability.Tag] = ret
	return ret
}

// Find returns the first extension providing T.
func Find[T any](c *Collection) (T, bool) {
	var zero T
	for _, item := range c.Lookup(CapabilityOf[T]()) {
		if ret, ok := item.(T); ok {
			return ret, true
		}
	}
	return zero, false
}

// FindAll returns every extension providing T.
func FindAll[T any](c *Collection) []T {
	var ret []T
	for _, item := range c.Lookup(CapabilityOf[T]()) {
		if typed, ok := item.(T); ok {
			ret = append(ret, typed)
		}
	}
	return ret
}
