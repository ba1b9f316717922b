package heap

import "golang.org/x/exp/slog"

// Strategy selects the free-block search policy used by the placement engine.
type Strategy int

const (
	// StrategyFirstFit returns the first free block satisfying a request, in link order.
	StrategyFirstFit Strategy = 0
	// StrategyBestFit returns the free block with the smallest non-negative surplus.
	StrategyBestFit Strategy = 1
	// StrategyWorstFit returns the free block with the largest surplus.
	StrategyWorstFit Strategy = 2
)

// Config carries the options recognized by New. Any AllocationStrategy value
// other than the three constants above falls back to StrategyFirstFit.
type Config struct {
	// InitialHeapSize is the number of bytes mapped from the OS at init, rounded
	// up to a page-size multiple.
	InitialHeapSize int
	// PageSize overrides the platform-reported page size. Zero selects the
	// platform default.
	PageSize int
	// UseGuardPages is reserved; this implementation does not act on it.
	UseGuardPages bool
	// AllocationStrategy selects the placement policy.
	AllocationStrategy Strategy
	// Logger, if non-nil, receives debug-level records for heap
	// initialization and extension, block frees and protection changes, and
	// a warning when a freed block's corruption canary check fails. A nil
	// Logger disables this entirely.
	Logger *slog.Logger
}

func (s Strategy) normalized() Strategy {
	switch s {
	case StrategyBestFit, StrategyWorstFit:
		return s
	default:
		return StrategyFirstFit
	}
}
