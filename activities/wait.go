package activities

import (
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/engine"
)

// WaitForBookmark suspends until the named bookmark is resumed and stores the
// resumed value in Result, when set.
type WaitForBookmark struct {
	engine.Base
	Bookmark string
	Scope    *bookmark.Scope
	Result   string
}

func (w *WaitForBookmark) Execute(ctx *engine.Context) error {
	var scopes []*bookmark.Scope
	if w.Scope != nil {
		scopes = append(scopes, w.Scope)
	}
	_, err := ctx.CreateBookmark(w.Bookmark, w.OnResumed, scopes...)
	return err
}

// OnResumed stores the resumed value.
func (w *WaitForBookmark) OnResumed(ctx *engine.Context, bm *bookmark.Bookmark, value interface{}) error {
	if w.Result == "" {
		return nil
	}
	return ctx.Set(w.Result, value)
}

// Code runs Fn.
type Code struct {
	engine.Base
	Fn func(ctx *engine.Context) error
}

// NewCode creates a code activity
func NewCode(name string, fn func(ctx *engine.Context) error) *Code {
	return &Code{Base: engine.Base{DisplayName: name}, Fn: fn}
}

func (c *Code) Execute(ctx *engine.Context) error {
	if c.Fn == nil {
		return nil
	}
	return c.Fn(ctx)
}
