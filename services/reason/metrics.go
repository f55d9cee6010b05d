// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reason

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neurosym/neurosym/services/reason/solver"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

var (
	inferenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "inferences_total",
		Help:      "Inference runs, partitioned by graph and convergence outcome.",
	}, []string{"graph", "converged"})

	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "inference_duration_seconds",
		Help:      "Wall-clock duration of inference runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"graph"})

	inferenceIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "inference_iterations",
		Help:      "Fixed-point iterations per inference run.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"graph"})

	trainingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "training_runs_total",
		Help:      "Training runs, partitioned by graph.",
	}, []string{"graph"})

	trainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "training_duration_seconds",
		Help:      "Wall-clock duration of training runs.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"graph"})

	trainingFinalLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "neurosym",
		Subsystem: "reason",
		Name:      "training_final_loss",
		Help:      "Final epoch loss of the most recent training run.",
	}, []string{"graph"})
)

func observeInference(graphName string, result *solver.Result, elapsed time.Duration) {
	inferenceTotal.WithLabelValues(graphName, strconv.FormatBool(result.Converged)).Inc()
	inferenceDuration.WithLabelValues(graphName).Observe(elapsed.Seconds())
	inferenceIterations.WithLabelValues(graphName).Observe(float64(result.Iterations))
}

func observeTraining(graphName string, result *trainer.Result, elapsed time.Duration) {
	trainingTotal.WithLabelValues(graphName).Inc()
	trainingDuration.WithLabelValues(graphName).Observe(elapsed.Seconds())
	trainingFinalLoss.WithLabelValues(graphName).Set(result.FinalLoss)
}

// MetricsHandler exposes the Prometheus registry for scraping.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
