// Package reqctx makes the current request and application reachable from
// any code running on behalf of one inbound request.
//
// Go has no goroutine-local storage, so each goroutine carries its own Stack
// inside its context.Context. A RequestContext is pushed onto that stack when
// dispatch begins and popped when it ends; popping runs the application's
// teardown functions exactly once.
//
// # Scoped Use
//
// Run pushes, calls the function and pops on every exit path, panics
// included:
//
//	rc := reqctx.New(app, reqctx.NewRequest(r))
//	err := rc.Run(ctx, func(ctx context.Context) error {
//	    req, _ := reqctx.CurrentRequest(ctx)
//	    fmt.Println(req.Path())
//	    return nil
//	})
//
// # Reading the Current Context
//
// CurrentRequest, CurrentApp and CurrentGlobals fail with
// domain.ErrOutsideContext when nothing is pushed. HasContext reports the same
// thing without an error.
//
// # Handing Work to Another Goroutine
//
// Stacks are never shared. A goroutine that needs the request takes a
// Snapshot while the context is still current and enters it on its own stack:
//
//	snap, err := reqctx.CopyCurrent(ctx)
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    ctx := reqctx.WithStack(context.WithoutCancel(ctx))
//	    _ = snap.Run(ctx, func(ctx context.Context) error {
//	        // same app, request and globals as the view
//	        return nil
//	    })
//	}()
//
// Wrap and WrapFunc do the same for a single function, capturing the context
// current at wrap time.
package reqctx
