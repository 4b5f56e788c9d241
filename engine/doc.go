// Package engine runs registered pipelines on behalf of many concurrent
// callers.
//
// Scheduling is request-parallel and stage-sequential: every Invoke gets its
// own goroutine and run id, concurrent runs are bounded by a weighted
// semaphore, and the stages inside one run execute strictly in order (see
// agent.Sequential).
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Config.MaxConcurrentRuns = 4
//	    o.Logger = logger
//	})
//	eng.Register(feedbackPipeline)
//
//	runID, events, errs, err := eng.Invoke(ctx, "feedback", "The app keeps crashing")
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    fmt.Println(runID, ev.Stage, ev.Text())
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//
// # Callbacks
//
// Cross-cutting concerns hook into runs through a CallbackManager:
// before_run, after_stage, after_run and on_error. A callback error aborts
// the run.
package engine
