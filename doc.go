// Package actflow provides a durable activity-tree execution engine.
//
// Workflows are trees of activities registered under a name. An instance of
// a workflow runs until it is idle on bookmarks, is saved to the configured
// instance store and can be resumed later, in the same process or another:
//
//	srv, _ := actflow.New(ctx, actflow.WithConfig(cfg))
//	_ = srv.Register("approval", approvalTree())
//	inst, _ := srv.Start(ctx, "approval", map[string]interface{}{"amount": 10})
//	result, _ := srv.Resume(ctx, inst.ID(), "approve", "yes")
//
// The runtime packages hold the engine: runtime/engine schedules activity
// instances, runtime/bookmark, runtime/extension, runtime/persistence and
// runtime/timer supply suspension points, per-instance extensions, the save
// pipeline and durable timers. The host package guards an instance for use
// by hosts and timers.
package actflow
