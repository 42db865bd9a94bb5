package extension

import (
	"context"
	"reflect"

	"github.com/viant/actflow/runtime/async"
	"github.com/viant/actflow/runtime/bookmark"
)

// Tag names a capability.
type Tag string

// Capability is a tag bound to the Go type extensions must satisfy.
type Capability struct {
	Tag  Tag
	Type reflect.Type
}

// TagOf returns the tag of T.
func TagOf[T any]() Tag {
	return Tag(typeOf[T]().String())
}

// CapabilityOf returns the capability describing T.
func CapabilityOf[T any]() Capability {
	t := typeOf[T]()
	return Capability{Tag: Tag(t.String()), Type: t}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Matches reports whether a value of type t provides the capability.
func (c Capability) Matches(t reflect.Type) bool {
	if t == nil || c.Type == nil {
		return false
	}
	if t == c.Type {
		return true
	}
	if c.Type.Kind() == reflect.Interface {
		return t.Implements(c.Type)
	}
	return t.AssignableTo(c.Type)
}

// Aware is implemented by extensions that contribute further extensions.
type Aware interface {
	AdditionalExtensions() []interface{}
}

// Proxy is the narrow handle an attached extension uses to reach its
// workflow instance.
type Proxy interface {
	ID() string
	ResumeBookmark(ctx context.Context, bm *bookmark.Bookmark, value interface{}) *async.Future[bookmark.Result]
}

// Attachable is implemented by extensions that need the owning instance. Attach
// receives nil when the instance is unloaded or aborted.
type Attachable interface {
	Attach(proxy Proxy)
}
