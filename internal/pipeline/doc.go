// Package pipeline provides the request algorithm: an ordered, named,
// mutable sequence of steps run for every inbound request.
//
// # Building
//
// An algorithm is built during wireup from registry names and inline
// steps, then adjusted relative to named anchors:
//
//	algo, err := pipeline.Build(reg, []pipeline.Entry{
//	    pipeline.Ref("parse_request"),
//	    pipeline.Ref("dispatch_request"),
//	    pipeline.Inline(pipeline.NewStep("add_user", addUser)),
//	    pipeline.Ref("get_response_for_exception"),
//	    pipeline.Ref("log_result"),
//	})
//	_ = algo.InsertBefore("dispatch_request", csrfInbound)
//	_ = algo.SetTrailing("get_response_for_exception")
//	algo.Freeze()
//
// Once frozen the sequence is read-only and shared by every request
// goroutine without locking.
//
// # Execution
//
// Steps before the trailing partition are normal steps. They run in order
// until one of them produces a response or fails. A failure (returned error
// or panic) is stored in RequestContext.Exception. Trailing steps then run
// unconditionally and in order: they build a response from an exception,
// log tracebacks and log the result. An error in a trailing step is sent to
// the failure reporter and the remaining trailing steps still run, so every
// request is logged exactly once.
package pipeline
