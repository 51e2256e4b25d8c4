package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Environment errors
	ErrUnsupportedOS ErrorCode = "unsupported_os"
	ErrModuleLoad    ErrorCode = "module_load_failed"

	// Application errors
	ErrMainLoop  ErrorCode = "main_loop_failed"
	ErrOpenLog   ErrorCode = "open_log_failed"
	ErrNoClock   ErrorCode = "clock_unavailable"
	ErrInitSinks ErrorCode = "init_sinks_failed"

	// Operation errors
	ErrTimeout      ErrorCode = "operation_timeout"
	ErrResourceBusy ErrorCode = "resource_busy"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrAlreadyRunning:  "Another instance is already running",
	ErrInvalidConfig:   "Invalid configuration",
	ErrMissingConfig:   "Missing configuration",
	ErrBindFlags:       "Failed to bind flags",
	ErrReadConfig:      "Failed to read configuration",
	ErrInvalidInterval: "Invalid interval value",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrUnsupportedOS:   "Unsupported operating system",
	ErrModuleLoad:      "Failed to load kernel module",
	ErrMainLoop:        "Error in main loop",
	ErrOpenLog:         "Failed to open log file",
	ErrNoClock:         "Clock unavailable",
	ErrInitSinks:       "Failed to initialize sinks",
	ErrTimeout:         "Operation timed out",
	ErrResourceBusy:    "Resource is busy",
}

// fatalCodes abort startup or the loop; everything else is recoverable.
var fatalCodes = map[ErrorCode]bool{
	ErrInvalidConfig:  true,
	ErrMissingConfig:  true,
	ErrReadConfig:     true,
	ErrUnsupportedOS:  true,
	ErrModuleLoad:     true,
	ErrAlreadyRunning: true,
	ErrOpenLog:        true,
	ErrNoClock:        true,
	ErrInitSinks:      true,
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

// IsFatal reports whether err, or any error it wraps, carries a fatal code.
func IsFatal(err error) bool {
	for err != nil {
		if e, ok := err.(Error); ok && fatalCodes[e.Code()] {
			return true
		}
		err = Unwrap(err)
	}

	return false
}

// RegisterFatal marks a package-level code as process-fatal.
func RegisterFatal(codes ...ErrorCode) {
	for _, c := range codes {
		fatalCodes[c] = true
	}
}
