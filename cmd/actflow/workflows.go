package main

import (
	"reflect"

	"github.com/viant/actflow"
	"github.com/viant/actflow/activities"
	"github.com/viant/actflow/model"
	"github.com/viant/actflow/runtime/engine"
)

// register adds the sample workflows.
func register(srv *actflow.Service) error {
	for name, root := range map[string]engine.Activity{
		"approval": approval(),
		"reminder": reminder(),
	} {
		if err := srv.Register(name, root); err != nil {
			return err
		}
	}
	return nil
}

// approval waits for an "approve" bookmark and records the decision.
func approval() engine.Activity {
	decide := func(approved bool) engine.Activity {
		return activities.NewCode("decide", func(ctx *engine.Context) error {
			return ctx.Set("approved", approved)
		})
	}
	root := activities.NewSequence("approval",
		&activities.WaitForBookmark{Bookmark: "approve", Result: "decision"},
		&activities.Switch[string]{
			Expression: model.Ref("decision"),
			Cases: []*activities.Case[string]{
				{Key: "yes", Body: decide(true)},
				{Key: "no", Body: decide(false)},
			},
			Default: activities.NewCode("unknown", func(ctx *engine.Context) error {
				return ctx.Set("approved", false)
			}),
		})
	root.Arguments = model.Arguments{{Name: "requester", Default: "", Type: reflect.TypeOf("")}}
	root.Variables = model.Variables{model.NewVariable("decision", ""), model.NewVariable("approved", false)}
	return root
}

// reminder waits for the "after" duration, then marks itself reminded.
func reminder() engine.Activity {
	root := activities.NewSequence("reminder",
		&activities.Delay{Duration: model.Ref("after")},
		activities.NewCode("remind", func(ctx *engine.Context) error {
			return ctx.Set("reminded", true)
		}))
	root.Arguments = model.Arguments{{Name: "after", Default: "1m"}}
	root.Variables = model.Variables{model.NewVariable("reminded", false)}
	return root
}
