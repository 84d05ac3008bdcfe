package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsumerMessagesReceived counts messages fetched from Kafka before any
	// processing, including ones that later fail or are skipped.
	ConsumerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_received_total",
			Help: "Total number of Kafka messages fetched by consumers.",
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerMessagesProcessed counts messages whose handler succeeded.
	ConsumerMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Total number of Kafka messages processed successfully.",
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerMessagesFailed counts messages whose handler exhausted all retries.
	ConsumerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Total number of Kafka messages that failed after all handler retries.",
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerMessagesDuplicate counts messages skipped by the idempotent handler.
	ConsumerMessagesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_duplicate_total",
			Help: "Total number of Kafka messages skipped as already-processed duplicates.",
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerProcessingDuration observes the time spent in a single handler
	// invocation, including failed attempts.
	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message handler invocations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerDLQPublished counts messages routed to a dead-letter topic.
	ConsumerDLQPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Total number of Kafka messages published to dead-letter topics.",
		},
		[]string{"topic", "consumer_group"},
	)

	// ProducerMessagesPublished counts successfully published messages.
	ProducerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published successfully.",
		},
		[]string{"topic"},
	)

	// ProducerPublishErrors counts failed publish attempts.
	ProducerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish failures.",
		},
		[]string{"topic"},
	)

	// ProducerPublishDuration observes the time spent writing a message,
	// successful or not.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
