package engine

import (
	"reflect"
	"runtime"
	"strings"
	"sync"
	"unicode"

	"github.com/viant/actflow/runtime/bookmark"
)

// CompletionCallback is invoked on the parent when a scheduled child completes.
type CompletionCallback func(ctx *Context, completed *Instance) error

// BookmarkCallback is invoked on the owner when its bookmark is resumed.
type BookmarkCallback func(ctx *Context, bm *bookmark.Bookmark, value interface{}) error

type completionFn = func(*Context, *Instance) error

type bookmarkFn = func(*Context, *bookmark.Bookmark, interface{}) error

// DefaultCallbackCacheSize is the number of method resolutions kept by a cache.
const DefaultCallbackCacheSize = 512

type methodKey struct {
	receiver reflect.Type
	name     string
}

// CallbackCache names callbacks and resolves durable callback names back to
// methods of the owning activity. One cache is shared by every executor of a
// service.
type CallbackCache struct {
	mux     sync.RWMutex
	size    int
	names   map[uintptr]string
	methods map[methodKey]int
}

// NewCallbackCache creates a cache bounded to size entries per map.
func NewCallbackCache(size int) *CallbackCache {
	if size <= 0 {
		size = DefaultCallbackCacheSize
	}
	return &CallbackCache{size: size, names: map[uintptr]string{}, methods: map[methodKey]int{}}
}

// Name returns the durable name of fn, a method value of an activity.
// Closures and plain functions get their runtime name, which Bind rejects.
func (c *CallbackCache) Name(fn interface{}) string {
	if fn == nil {
		return ""
	}
	value := reflect.ValueOf(fn)
	if value.Kind() != reflect.Func || value.IsNil() {
		return ""
	}
	pc := value.Pointer()
	c.mux.RLock()
	name, ok := c.names[pc]
	c.mux.RUnlock()
	if ok {
		return name
	}
	if f := runtime.FuncForPC(pc); f != nil {
		name = f.Name()
	}
	c.mux.Lock()
	if len(c.names) >= c.size {
		c.names = map[uintptr]string{}
	}
	c.names[pc] = name
	c.mux.Unlock()
	return name
}

// Bindable reports whether name can be rebound on owner after a reload.
func (c *CallbackCache) Bindable(owner Activity, name string) bool {
	_, ok := c.method(owner, name)
	return ok
}

func (c *CallbackCache) bindCompletion(owner Activity, name string) (CompletionCallback, bool) {
	method, ok := c.method(owner, name)
	if !ok {
		return nil, false
	}
	fn, ok := method.Interface().(completionFn)
	return fn, ok
}

func (c *CallbackCache) bindBookmark(owner Activity, name string) (BookmarkCallback, bool) {
	method, ok := c.method(owner, name)
	if !ok {
		return nil, false
	}
	fn, ok := method.Interface().(bookmarkFn)
	return fn, ok
}

func (c *CallbackCache) method(owner Activity, name string) (reflect.Value, bool) {
	if owner == nil || name == "" {
		return reflect.Value{}, false
	}
	receiver := reflect.TypeOf(owner)
	key := methodKey{receiver: receiver, name: name}
	c.mux.RLock()
	index, ok := c.methods[key]
	c.mux.RUnlock()
	if !ok {
		index = resolveMethod(receiver, name)
		c.mux.Lock()
		if len(c.methods) >= c.size {
			c.methods = map[methodKey]int{}
		}
		c.methods[key] = index
		c.mux.Unlock()
	}
	if index < 0 {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(owner).Method(index), true
}

// resolveMethod matches a runtime method value name such as
// pkg.(*Parallel).OnBranchCompleted-fm against receiver. The method may be
// promoted from a type embedded in the receiver; generic activities use that
// to expose callbacks, since their own method values are compiled as closures.
func resolveMethod(receiver reflect.Type, name string) int {
	if !strings.HasSuffix(name, "-fm") {
		return -1
	}
	name = strings.TrimSuffix(name, "-fm")
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return -1
	}
	methodName, qualified := name[idx+1:], name[:idx]
	if methodName == "" || !unicode.IsUpper(rune(methodName[0])) {
		return -1
	}
	elem := receiver
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if !strings.HasPrefix(qualified, elem.PkgPath()+".") {
		return -1
	}
	typeName := strings.TrimPrefix(qualified, elem.PkgPath()+".")
	typeName = strings.TrimSuffix(strings.TrimPrefix(typeName, "(*"), ")")
	if genericName(typeName) != genericName(elem.Name()) && !embeds(elem, typeName) {
		return -1
	}
	method, ok := receiver.MethodByName(methodName)
	if !ok {
		return -1
	}
	return method.Index
}

// embeds reports whether elem directly embeds a type named typeName of the
// same package.
func embeds(elem reflect.Type, typeName string) bool {
	if elem.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.Anonymous {
			continue
		}
		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if fieldType.PkgPath() == elem.PkgPath() && genericName(fieldType.Name()) == genericName(typeName) {
			return true
		}
	}
	return false
}

func genericName(name string) string {
	if idx := strings.Index(name, "["); idx != -1 {
		return name[:idx]
	}
	return name
}

// callback is a scheduled callback with its durable name.
type callback struct {
	name       string
	completion CompletionCallback
	bookmark   BookmarkCallback
}

func (c *callback) isEmpty() bool {
	return c == nil || (c.completion == nil && c.bookmark == nil)
}
