package models

// Health is the body of the liveness and readiness probes.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the body of the ops status endpoint.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Sources   []SourceStatus   `json:"sources"`
	Providers []ProviderStatus `json:"providers"`
}

// SourceStatus reports the rolling health of one fused source.
type SourceStatus struct {
	Source            string       `json:"source"`
	Status            HealthStatus `json:"status"`
	ConsecutiveErrors int64        `json:"consecutiveErrors"`
	TotalRequests     int64        `json:"totalRequests"`
	LastSuccessAt     *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt     *Timestamp   `json:"lastFailureAt,omitempty"`
}

// ProviderStatus reports the circuit breaker of one upstream HTTP client.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
