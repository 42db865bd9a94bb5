package activities

import (
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/engine"
)

const completedKey = "completed"

// Parallel schedules every branch and completes once all of them completed,
// or once CompletionCondition holds after a branch completion.
//
// Branches are scheduled in reverse declaration order; the scheduler drains
// its queue stack-like, so the first branch starts first.
type Parallel struct {
	engine.Base
	Branches            []engine.Activity
	CompletionCondition model.Expression
}

func (p *Parallel) Children() []engine.Activity { return p.Branches }

func (p *Parallel) Execute(ctx *engine.Context) error {
	for i := len(p.Branches) - 1; i >= 0; i-- {
		if _, err := ctx.ScheduleActivity(p.Branches[i], p.OnBranchCompleted); err != nil {
			return err
		}
	}
	return nil
}

// OnBranchCompleted applies the branch completion policy.
func (p *Parallel) OnBranchCompleted(ctx *engine.Context, completed *engine.Instance) error {
	return onBranchCompleted(ctx, p.CompletionCondition, completed)
}

// Cancel cancels every branch; Parallel becomes Canceled once a branch ends
// other than Closed.
func (p *Parallel) Cancel(ctx *engine.Context) error {
	ctx.CancelChildren()
	if len(ctx.Instance().Children()) == 0 {
		return ctx.MarkCanceled()
	}
	return nil
}

func onBranchCompleted(ctx *engine.Context, condition model.Expression, completed *engine.Instance) error {
	done := false
	if _, err := ctx.GetState(completedKey, &done); err != nil {
		return err
	}
	if done {
		return nil
	}
	if ctx.IsCancellationRequested() && completed.State() != engine.Closed {
		ctx.SetState(completedKey, true)
		ctx.CancelChildren()
		return ctx.MarkCanceled()
	}
	if condition == nil {
		return nil
	}
	value, err := ctx.Evaluate(condition)
	if err != nil {
		return err
	}
	ok, err := asBool(ctx, value)
	if err != nil || !ok {
		return err
	}
	ctx.SetState(completedKey, true)
	ctx.CancelChildren()
	return nil
}

func asBool(ctx *engine.Context, value interface{}) (bool, error) {
	switch actual := value.(type) {
	case nil:
		return false, nil
	case bool:
		return actual, nil
	}
	ret := false
	err := ctx.Convert(value, &ret)
	return ret, err
}
