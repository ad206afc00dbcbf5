package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trainingRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_training_runs_total",
		Help: "Model build attempts by result.",
	}, []string{"result"})

	trainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rent_training_duration_seconds",
		Help:    "Wall time of a full model build.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	modelLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_model_loads_total",
		Help: "LoadModel calls by outcome (loaded, built, failed).",
	}, []string{"outcome"})

	predictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rent_predictions_total",
		Help: "Successful rent predictions.",
	})

	predictionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rent_prediction_failures_total",
		Help: "Rejected prediction requests by reason.",
	}, []string{"reason"})

	lastTestScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rent_model_test_r2",
		Help: "Held-out R² of the most recently built model.",
	})
)
