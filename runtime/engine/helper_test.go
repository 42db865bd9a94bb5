package engine

import (
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/bookmark"
)

type code struct {
	Base
	fn func(ctx *Context) error
}

func (c *code) Execute(ctx *Context) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx)
}

// wait blocks on a named bookmark and stores the resumed value in Result.
type wait struct {
	Base
	Bookmark string
	Result   string
}

func (w *wait) Execute(ctx *Context) error {
	_, err := ctx.CreateBookmark(w.Bookmark, w.OnResumed)
	return err
}

func (w *wait) OnResumed(ctx *Context, bm *bookmark.Bookmark, value interface{}) error {
	if w.Result == "" {
		return nil
	}
	return ctx.Set(w.Result, value)
}

// sequence runs children one after another.
type sequence struct {
	Base
	Activities []Activity
}

func (s *sequence) Children() []Activity { return s.Activities }

func (s *sequence) Execute(ctx *Context) error {
	return s.next(ctx, 0)
}

func (s *sequence) next(ctx *Context, index int) error {
	if index >= len(s.Activities) {
		return nil
	}
	ctx.SetState("index", index)
	_, err := ctx.ScheduleActivity(s.Activities[index], s.OnChildCompleted)
	return err
}

func (s *sequence) OnChildCompleted(ctx *Context, completed *Instance) error {
	if completed.State() != Closed {
		return nil
	}
	index := 0
	if _, err := ctx.GetState("index", &index); err != nil {
		return err
	}
	return s.next(ctx, index+1)
}

func newSequence(name string, variables model.Variables, children ...Activity) *sequence {
	return &sequence{Base: Base{DisplayName: name, Variables: variables}, Activities: children}
}

// fanOut schedules Body once per item.
type fanOut[T any] struct {
	Base
	branches
	Items []T
	Body  *Action
}

func (f *fanOut[T]) Children() []Activity { return []Activity{f.Body.Handler} }

func (f *fanOut[T]) Actions() []*Action { return []*Action{f.Body} }

func (f *fanOut[T]) Execute(ctx *Context) error {
	for _, item := range f.Items {
		if _, err := ctx.ScheduleAction(f.Body, item, f.branches.completion()); err != nil {
			return err
		}
	}
	return nil
}

type branches struct{}

func (b branches) completion() CompletionCallback { return b.OnBranchCompleted }

func (branches) OnBranchCompleted(ctx *Context, completed *Instance) error { return nil }
