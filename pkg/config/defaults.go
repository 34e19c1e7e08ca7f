package config

// Hashing defaults.
const (
	DefaultChunkSize    = "1MiB"
	DefaultBufferWindow = 16
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Observability defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultSampleRatio  = 0.0
	DefaultEnvironment  = ""
	DefaultMetricsAddr  = ""
)

// DefaultAlgorithms returns the algorithm names enabled when none are configured.
func DefaultAlgorithms() []string {
	return []string{"md5", "sha1", "sha256"}
}
