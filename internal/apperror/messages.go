package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// WebSocket / stream supervisor errors
	CodeStreamConnectionFailed: "Failed to open venue stream connection",
	CodeStreamReconnecting:     "Stream session reconnecting",
	CodeStreamClosed:           "Stream session closed",
	CodeStreamSendFailed:       "Failed to send frame on stream session",
	CodeHeartbeatTimeout:       "No heartbeat received within timeout",
	CodeMalformedFrame:         "Received malformed frame from venue",
	CodeUnknownDiscriminant:    "Frame carried an unrecognized discriminant",

	// Discovery / catalog errors
	CodeCatalogFetchFailed:  "Failed to fetch venue product catalog",
	CodeCatalogParseFailed:  "Failed to parse venue product catalog",
	CodeDiscoveryFailed:     "Instrument discovery failed",
	CodeCurrencyListFailed:  "Failed to list venue currencies",
	CodeInstrumentListError: "Failed to list venue instruments",

	// Normalization errors
	CodeNormalizationFailed: "Failed to normalize venue record to canonical form",
	CodeUnimplementedVenue:  "Venue reported a value outside the known whitelist",

	// Storage engine errors
	CodeStorageSelectionMiss: "Event referenced a storage cell outside the pre-allocated shell",
	CodeInvalidPrice:         "Price value is not a valid total-ordered number",

	// Circuit breaker
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
