package activities

import "github.com/viant/actflow/runtime/engine"

// Persist blocks until the host saved the instance. It fails inside a
// NoPersistScope.
type Persist struct {
	engine.Base
}

func (p *Persist) Execute(ctx *engine.Context) error {
	return ctx.RequestPersist(nil)
}

// NoPersistScope runs Body in a region where persistence is not allowed.
type NoPersistScope struct {
	engine.Base
	Body engine.Activity
}

func (n *NoPersistScope) Children() []engine.Activity {
	if n.Body == nil {
		return nil
	}
	return []engine.Activity{n.Body}
}

func (n *NoPersistScope) Execute(ctx *engine.Context) error {
	if n.Body == nil {
		return nil
	}
	ctx.EnterNoPersist()
	_, err := ctx.ScheduleActivity(n.Body, n.OnBodyCompleted)
	return err
}

// OnBodyCompleted leaves the no-persist region.
func (n *NoPersistScope) OnBodyCompleted(ctx *engine.Context, completed *engine.Instance) error {
	ctx.ExitNoPersist()
	return nil
}
