package activities

import (
	"fmt"
	"time"

	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/bookmark"
	"github.com/viant/actflow/runtime/engine"
	"github.com/viant/actflow/runtime/extension"
	"github.com/viant/actflow/runtime/timer"
)

const bookmarkKey = "bookmark"

// Delay completes after Duration using a durable timer. A zero duration
// completes immediately, timer.Infinite waits until canceled.
type Delay struct {
	engine.Base
	Duration model.Expression
}

// NewDelay creates a delay with a fixed duration.
func NewDelay(duration time.Duration) *Delay {
	return &Delay{Duration: model.Literal(duration)}
}

func (d *Delay) RequiredExtensions() []extension.Capability {
	return []extension.Capability{extension.CapabilityOf[timer.Registrar]()}
}

func (d *Delay) Execute(ctx *engine.Context) error {
	duration, err := d.duration(ctx)
	if err != nil {
		return err
	}
	if duration == 0 {
		return nil
	}
	registrar, ok := engine.Extension[timer.Registrar](ctx)
	if !ok {
		return fmt.Errorf("timer extension not found")
	}
	bm, err := ctx.CreateBookmark("", d.OnTimer)
	if err != nil {
		return err
	}
	ctx.SetState(bookmarkKey, bm.Name)
	return registrar.RegisterTimer(duration, bm)
}

func (d *Delay) duration(ctx *engine.Context) (time.Duration, error) {
	value, err := ctx.Evaluate(d.Duration)
	if err != nil {
		return 0, err
	}
	switch actual := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return actual, nil
	case string:
		return time.ParseDuration(actual)
	}
	var ret int64
	if err = ctx.Convert(value, &ret); err != nil {
		return 0, fmt.Errorf("invalid duration %v: %w", value, err)
	}
	return time.Duration(ret), nil
}

// OnTimer completes the delay.
func (d *Delay) OnTimer(ctx *engine.Context, bm *bookmark.Bookmark, value interface{}) error {
	return nil
}

// Cancel removes the pending timer.
func (d *Delay) Cancel(ctx *engine.Context) error {
	name := ""
	if ok, err := ctx.GetState(bookmarkKey, &name); err != nil {
		return err
	} else if ok {
		if registrar, found := engine.Extension[timer.Registrar](ctx); found {
			registrar.CancelTimer(bookmark.New(name))
		}
	}
	ctx.RemoveAllBookmarks()
	return ctx.MarkCanceled()
}
