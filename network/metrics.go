package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training metrics, registered on the default registry. Processes that
// serve a metrics endpoint pick these up for free; everyone else pays two
// counter updates per batch and one or two per epoch.
var (
	metricEpochs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensornet",
		Name:      "train_epochs_total",
		Help:      "Number of completed training epochs.",
	})
	metricBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensornet",
		Name:      "train_batches_total",
		Help:      "Number of completed training batches.",
	})
	metricSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tensornet",
		Name:      "train_samples_total",
		Help:      "Number of training samples processed.",
	})
	metricTestAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tensornet",
		Name:      "test_accuracy",
		Help:      "Accuracy of the last test evaluation pass.",
	})
)
