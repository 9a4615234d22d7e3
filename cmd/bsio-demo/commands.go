package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-bsio/core"
	"github.com/Swind/go-bsio/coro"
)

// =============================================================================
// counter: many submitters, one drain
// =============================================================================

func newCounterCommand(d *demo) *cobra.Command {
	var (
		tasks      int
		submitters int
	)
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Submit many increments from several goroutines and drain the pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := runCounter(cmd.Context(), d.newPool(), tasks, submitters)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "counter=%d\n", got)
			if got != int64(tasks) {
				return errors.Errorf("expected %d increments, got %d", tasks, got)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&tasks, "tasks", "n", 100000, "Number of increment tasks.")
	cmd.Flags().IntVar(&submitters, "submitters", 4, "Number of submitting goroutines.")
	return cmd
}

func runCounter(ctx context.Context, pool *core.StaticThreadPool, tasks, submitters int) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if submitters < 1 {
		submitters = 1
	}
	var counter atomic.Int64
	inc := func(context.Context) { counter.Add(1) }

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < submitters; s++ {
		share := tasks / submitters
		if s == 0 {
			share += tasks % submitters
		}
		g.Go(func() error {
			for i := 0; i < share; i++ {
				if err := pool.Execute(gctx, inc, core.BlockingNever, core.RelationshipFork); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	pool.Wait()
	return counter.Load(), err
}

// =============================================================================
// fibonacci: coroutines interleaved by a looper
// =============================================================================

func newFibonacciCommand(d *demo) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "fibonacci",
		Short: "Interleave Fibonacci and triangular number coroutines on one stack pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := coro.NewEnvironment(d.cfg.CoroutineOptions(d.logger))
			defer env.Close()
			for _, line := range runSequences(cmd.Context(), env, steps) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			stats := env.Stats()
			d.logger.Debug("environment", core.F("created", stats.Created), core.F("reused", stats.Reused))
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 7, "Numbers to produce per sequence.")
	return cmd
}

// runSequences runs two generators that hand control to each other after
// every number, so their output alternates.
func runSequences(ctx context.Context, env *coro.Environment, steps int) []string {
	if ctx == nil {
		ctx = context.Background()
	}
	looper := coro.NewLooper(env)
	var out []string

	fib := env.Create(ctx, func(ctx context.Context) {
		// four slots are enough: each entry only looks two back
		table := [4]int{1, 1}
		for i := 0; i < steps; i++ {
			if i >= 2 {
				table[i&3] = table[(i-1)&3] + table[(i-2)&3]
			}
			out = append(out, fmt.Sprintf("fib %d", table[i&3]))
			looper.Yield()
		}
	})
	tri := env.Create(ctx, func(ctx context.Context) {
		sum := 0
		for i := 1; i <= steps; i++ {
			sum += i
			out = append(out, fmt.Sprintf("tri %d", sum))
			looper.Yield()
		}
	})

	fib.Resume()
	tri.Resume()
	looper.Run(ctx)
	return out
}

// =============================================================================
// priority: a priority context served by several runners
// =============================================================================

func newPriorityCommand(d *demo) *cobra.Command {
	var (
		perLevel int
		runners  int
	)
	cmd := &cobra.Command{
		Use:   "priority",
		Short: "Queue tasks at three priorities and report their mean completion rank.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ranks, err := runPriority(cmd.Context(), d.cfg.PoolOptions(d.logger), perLevel, runners)
			if err != nil {
				return err
			}
			for _, p := range []core.TaskPriority{core.TaskPriorityUserBlocking, core.TaskPriorityUserVisible, core.TaskPriorityBestEffort} {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %.1f\n", priorityName(p), ranks[p])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&perLevel, "tasks", "n", 100, "Tasks per priority level.")
	cmd.Flags().IntVar(&runners, "runners", 1, "Goroutines serving the context.")
	return cmd
}

func priorityName(p core.TaskPriority) string {
	switch p {
	case core.TaskPriorityUserBlocking:
		return "user-blocking"
	case core.TaskPriorityUserVisible:
		return "user-visible"
	default:
		return "best-effort"
	}
}

// runPriority queues every task before any runner starts, then returns the
// mean completion rank per priority.
func runPriority(ctx context.Context, cfg *core.PoolConfig, perLevel, runners int) (map[core.TaskPriority]float64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	pc := core.NewPriorityContext("demo", cfg)
	levels := []core.TaskPriority{core.TaskPriorityBestEffort, core.TaskPriorityUserVisible, core.TaskPriorityUserBlocking}
	total := perLevel * len(levels)

	var (
		mu   sync.Mutex
		rank int
		sums = make(map[core.TaskPriority]int)
		done = make(chan struct{})
	)

	submit, _ := errgroup.WithContext(ctx)
	for _, level := range levels {
		ex := pc.Executor(level)
		submit.Go(func() error {
			for i := 0; i < perLevel; i++ {
				err := ex.Execute(ctx, func(context.Context) {
					mu.Lock()
					sums[ex.Priority()] += rank
					rank++
					if rank == total {
						close(done)
					}
					mu.Unlock()
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := submit.Wait(); err != nil {
		return nil, err
	}
	if total == 0 {
		return map[core.TaskPriority]float64{}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serve, _ := errgroup.WithContext(runCtx)
	for i := 0; i < runners; i++ {
		serve.Go(func() error {
			pc.Run(runCtx)
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(time.Minute):
	}
	pc.Stop()
	_ = serve.Wait()

	mu.Lock()
	defer mu.Unlock()
	if rank != total {
		return nil, errors.Errorf("only %d of %d priority tasks ran", rank, total)
	}
	ranks := make(map[core.TaskPriority]float64, len(levels))
	for _, level := range levels {
		ranks[level] = float64(sums[level]) / float64(perLevel)
	}
	return ranks, nil
}
