package core

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID       string
	Workers  int
	Queued   int
	Active   int
	Executed int64
	Rejected int64
	Running  bool
	Stopped  bool
}

// PriorityStats represents runtime observability state for a PriorityContext.
type PriorityStats struct {
	Name    string
	Pending int
	Active  int
	Stopped bool
}
