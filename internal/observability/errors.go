package observability

import "github.com/datacendia/council/internal/types"

// Observability error codes.
const (
	ErrExporterConnection  types.ErrorCode = "OBSERVABILITY_EXPORTER_CONNECTION"
	ErrMetricsRegistration types.ErrorCode = "OBSERVABILITY_METRICS_REGISTRATION"
	ErrShutdownTimeout     types.ErrorCode = "OBSERVABILITY_SHUTDOWN_TIMEOUT"
	ErrInvalidConfig       types.ErrorCode = "OBSERVABILITY_INVALID_CONFIG"
)

// NewExporterConnectionError creates an error for a failed exporter connection.
func NewExporterConnectionError(endpoint string, cause error) *types.CouncilError {
	err := types.WrapError(ErrExporterConnection, "failed to connect to exporter at "+endpoint, cause)
	err.Retryable = true
	return err
}
