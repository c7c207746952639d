// Package runlet provides a multi-worker task scheduler for cooperative
// asynchronous work. It accepts futures, drives them to completion across a
// fixed pool of workers and coordinates the poll/wake protocol through a
// small atomic state machine, guaranteeing at most one concurrent poll per
// task, no lost wakeups and no redundant polls.
//
// End-users typically interact with the scheduler via the root package:
//
//	sched, _ := runlet.New(schedctx.New(), 4)
//	handle, _ := sched.Submit(ctx, myFuture)
//	out, err := handle.Wait(ctx)
//
// For more details see the README and individual sub-packages.
package runlet
