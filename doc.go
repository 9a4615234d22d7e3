// Package bsio provides a static thread pool, stackful coroutines and an
// epoll reactor that together run blocking-style I/O code without blocking
// threads.
//
// # Quick Start
//
// Initialize the global thread pool at application startup:
//
//	bsio.InitGlobalThreadPool(4) // 4 workers
//	defer bsio.ShutdownGlobalThreadPool()
//
// Submit work with explicit blocking and relationship semantics:
//
//	pool := bsio.GetGlobalThreadPool()
//	pool.Execute(ctx, func(ctx context.Context) {
//		// runs on a worker
//	}, bsio.BlockingNever, bsio.RelationshipFork)
//
// # Key Concepts
//
// StaticThreadPool: a fixed set of workers pulling from one shared LIFO list.
// Work submitted from inside a worker takes fast paths: blocking work runs
// inline and continuations go to the worker's private FIFO queue, which is
// spliced back onto the shared list after the current task returns.
//
// Executor: a pool handle carrying blocking, relationship and directionality
// properties. Two-way submissions return a Future.
//
// Coroutine: a cooperatively scheduled unit with its own stack, created from
// a per-goroutine Environment that recycles retired stacks (package coro).
//
// Reactor: turns read, write, connect, accept, sleep and poll into coroutine
// suspensions driven by epoll and timerfd (package reactor, Linux only).
//
// # Shutdown
//
// Stop abandons queued work and makes workers exit as soon as they are idle.
// Wait drains every queued task, including work queued by running tasks,
// before joining the workers.
//
// # Example
//
//	import (
//		"context"
//		bsio "github.com/Swind/go-bsio"
//		"github.com/Swind/go-bsio/coro"
//	)
//
//	func main() {
//		pool := bsio.NewStaticThreadPool(4, nil)
//		defer pool.Wait()
//
//		pool.Execute(context.Background(), func(ctx context.Context) {
//			env := coro.Open(ctx)
//			co := env.Create(ctx, func(ctx context.Context) {
//				println("inside")
//				coro.Yield(ctx)
//				println("resumed")
//			})
//			co.Resume()
//			co.Resume()
//		}, bsio.BlockingNever, bsio.RelationshipFork)
//	}
package bsio
