package classifier

import "time"

// SolveStats describes one finished binary solve.
type SolveStats struct {
	Label          string
	Algorithm      Algorithm
	Iterations     int
	SupportVectors int
	Objective      float64
	Duration       time.Duration
}

// TrainStats describes a finished training run.
type TrainStats struct {
	Labels    int
	Features  int
	Instances int
	Duration  time.Duration
}

// Observer receives training events. Implementations must be safe for
// concurrent use since binary solves run in parallel.
type Observer interface {
	// ObserveSolve is called after each per-label solve.
	ObserveSolve(stats SolveStats)

	// ObserveTraining is called once a training run ends. err is nil if
	// the model was built.
	ObserveTraining(stats TrainStats, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) ObserveSolve(SolveStats)           {}
func (NoopObserver) ObserveTraining(TrainStats, error) {}
