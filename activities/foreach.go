package activities

import (
	"fmt"
	"reflect"

	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/engine"
)

// ParallelForEach schedules Body once per value produced by Values. The
// sequence is iterated fully before any branch runs; only the scheduled
// branches are cancellable.
type ParallelForEach[T any] struct {
	engine.Base
	forEachBranches
	Values              model.Expression
	Body                *engine.Action
	CompletionCondition model.Expression
}

func (p *ParallelForEach[T]) Children() []engine.Activity {
	if p.Body == nil || p.Body.Handler == nil {
		return nil
	}
	return []engine.Activity{p.Body.Handler}
}

func (p *ParallelForEach[T]) Validate() error {
	if p.Values == nil {
		return fmt.Errorf("values expression was empty")
	}
	if p.Body != nil && p.Body.Type == nil {
		if itemType := reflect.TypeOf((*T)(nil)).Elem(); itemType.Kind() != reflect.Interface {
			p.Body.Type = itemType
		}
	}
	return nil
}

func (p *ParallelForEach[T]) Actions() []*engine.Action {
	return []*engine.Action{p.Body}
}

func (p *ParallelForEach[T]) Execute(ctx *engine.Context) error {
	value, err := ctx.Evaluate(p.Values)
	if err != nil {
		return err
	}
	items, err := p.items(ctx, value)
	if err != nil {
		return err
	}
	if p.Body == nil || p.Body.Handler == nil {
		return nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		if _, err = ctx.ScheduleAction(p.Body, items[i], p.forEachBranches.completion()); err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelForEach[T]) items(ctx *engine.Context, value interface{}) ([]T, error) {
	if value == nil {
		return nil, ErrNilValues
	}
	if typed, ok := value.([]T); ok {
		if typed == nil {
			return nil, ErrNilValues
		}
		return typed, nil
	}
	values := reflect.ValueOf(value)
	if values.Kind() != reflect.Slice && values.Kind() != reflect.Array {
		return nil, fmt.Errorf("unsupported values type: %T", value)
	}
	if values.Kind() == reflect.Slice && values.IsNil() {
		return nil, ErrNilValues
	}
	ret := make([]T, 0, values.Len())
	for i := 0; i < values.Len(); i++ {
		var item T
		if err := ctx.Convert(values.Index(i).Interface(), &item); err != nil {
			return nil, fmt.Errorf("failed to convert value %d: %w", i, err)
		}
		ret = append(ret, item)
	}
	return ret, nil
}

func (p *ParallelForEach[T]) completionCondition() model.Expression {
	return p.CompletionCondition
}

// Cancel cancels every scheduled branch.
func (p *ParallelForEach[T]) Cancel(ctx *engine.Context) error {
	ctx.CancelChildren()
	if len(ctx.Instance().Children()) == 0 {
		return ctx.MarkCanceled()
	}
	return nil
}

// forEachBranches carries the branch callback of ParallelForEach on a
// non-generic receiver so the callback keeps a method name that survives a
// reload.
type forEachBranches struct{}

func (b forEachBranches) completion() engine.CompletionCallback {
	return b.OnBranchCompleted
}

// OnBranchCompleted applies the branch completion policy of the owner.
func (forEachBranches) OnBranchCompleted(ctx *engine.Context, completed *engine.Instance) error {
	var condition model.Expression
	if owner, ok := ctx.Instance().Activity().(interface{ completionCondition() model.Expression }); ok {
		condition = owner.completionCondition()
	}
	return onBranchCompleted(ctx, condition, completed)
}
