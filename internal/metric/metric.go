// Package metric exports training and decoding statistics to Prometheus.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/happyhackingspace/seqlab/classifier"
)

const namespace = "seqlab"

// Observer implements classifier.Observer and beam.Observer on top of a
// Prometheus registry. It is safe for concurrent use.
type Observer struct {
	registry *prometheus.Registry

	solves         *prometheus.CounterVec   // by algorithm
	iterations     *prometheus.HistogramVec // by algorithm
	solveDuration  *prometheus.HistogramVec // by algorithm
	supportVectors *prometheus.GaugeVec     // by label
	trainings      *prometheus.CounterVec   // by status
	trainDuration  prometheus.Histogram
	modelSize      *prometheus.GaugeVec // by dimension

	steps      prometheus.Counter
	extensions prometheus.Counter
	survivors  prometheus.Histogram
}

// New creates an observer with its own registry.
func New() (*Observer, error) {
	o := &Observer{
		registry: prometheus.NewRegistry(),

		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "solves_total",
			Help:      "Binary solves completed",
		}, []string{"algorithm"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "solve_iterations",
			Help:      "Outer iterations per binary solve",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}, []string{"algorithm"}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "solve_duration_seconds",
			Help:      "Binary solve duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm"}),
		supportVectors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "support_vectors",
			Help:      "Support vectors of the last SVM solve per label",
		}, []string{"label"}),
		trainings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "runs_total",
			Help:      "Training runs by outcome",
		}, []string{"status"}),
		trainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "duration_seconds",
			Help:      "Training run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		modelSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "model_size",
			Help:      "Size of the last trained model",
		}, []string{"dimension"}), // labels, features, instances

		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "beam",
			Name:      "steps_total",
			Help:      "Beam decision steps taken",
		}),
		extensions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "beam",
			Name:      "extensions_total",
			Help:      "Hypothesis extensions formed before truncation",
		}),
		survivors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "beam",
			Name:      "survivors",
			Help:      "Hypotheses kept after each step",
			Buckets:   prometheus.LinearBuckets(1, 1, 16),
		}),
	}

	for _, c := range []prometheus.Collector{
		o.solves, o.iterations, o.solveDuration, o.supportVectors, o.trainings,
		o.trainDuration, o.modelSize, o.steps, o.extensions, o.survivors,
	} {
		if err := o.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Registry returns the registry holding the observer's metrics.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// ObserveSolve implements classifier.Observer.
func (o *Observer) ObserveSolve(s classifier.SolveStats) {
	alg := s.Algorithm.String()
	o.solves.WithLabelValues(alg).Inc()
	o.iterations.WithLabelValues(alg).Observe(float64(s.Iterations))
	o.solveDuration.WithLabelValues(alg).Observe(s.Duration.Seconds())
	if s.Algorithm != classifier.L2LR {
		o.supportVectors.WithLabelValues(s.Label).Set(float64(s.SupportVectors))
	}
}

// ObserveTraining implements classifier.Observer.
func (o *Observer) ObserveTraining(s classifier.TrainStats, err error) {
	if err != nil {
		o.trainings.WithLabelValues("error").Inc()
		return
	}
	o.trainings.WithLabelValues("ok").Inc()
	o.trainDuration.Observe(s.Duration.Seconds())
	o.modelSize.WithLabelValues("labels").Set(float64(s.Labels))
	o.modelSize.WithLabelValues("features").Set(float64(s.Features))
	o.modelSize.WithLabelValues("instances").Set(float64(s.Instances))
}

// ObserveStep implements beam.Observer.
func (o *Observer) ObserveStep(_, extensions, survivors int) {
	o.steps.Inc()
	o.extensions.Add(float64(extensions))
	o.survivors.Observe(float64(survivors))
}

// WriteTextfile writes every metric to path in the text exposition format,
// for collection by a node exporter textfile collector.
func (o *Observer) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, o.registry)
}
