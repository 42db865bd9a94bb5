package activities

import "github.com/viant/actflow/runtime/engine"

// Sequence runs its activities one after another.
type Sequence struct {
	engine.Base
	Activities []engine.Activity
}

// NewSequence creates a sequence
func NewSequence(name string, activities ...engine.Activity) *Sequence {
	return &Sequence{Base: engine.Base{DisplayName: name}, Activities: activities}
}

func (s *Sequence) Children() []engine.Activity { return s.Activities }

func (s *Sequence) Execute(ctx *engine.Context) error {
	return s.scheduleAt(ctx, 0)
}

func (s *Sequence) scheduleAt(ctx *engine.Context, index int) error {
	if index >= len(s.Activities) {
		return nil
	}
	ctx.SetState("index", index)
	_, err := ctx.ScheduleActivity(s.Activities[index], s.OnChildCompleted)
	return err
}

// OnChildCompleted schedules the next activity once the previous one closed.
func (s *Sequence) OnChildCompleted(ctx *engine.Context, completed *engine.Instance) error {
	if completed.State() != engine.Closed {
		if ctx.IsCancellationRequested() {
			return ctx.MarkCanceled()
		}
		return nil
	}
	index := 0
	if _, err := ctx.GetState("index", &index); err != nil {
		return err
	}
	return s.scheduleAt(ctx, index+1)
}
