package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// appVersion is stamped into export bundle manifests and the OpenAPI spec.
	appVersion = "0.1.0"
)
