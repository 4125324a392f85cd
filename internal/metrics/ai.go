package metrics

import "time"

// AICallCompleted records a finished AI API call with its latency.
func AICallCompleted(operation string, duration time.Duration) {
	AIAPICalls.WithLabelValues(operation, "success").Inc()
	AIAPICallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// AICallFailed records a failed AI API call.
func AICallFailed(operation string) {
	AIAPICalls.WithLabelValues(operation, "error").Inc()
}

// AIRetried records a retry attempt against the AI API.
func AIRetried(operation string) {
	AIRetriesTotal.WithLabelValues(operation).Inc()
}
