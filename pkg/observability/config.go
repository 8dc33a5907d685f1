// Package observability wires up the OpenTelemetry providers and the slog
// logger shared by every dwellscope entry point. Callers build a Config,
// pass it to Init, and receive ready-to-use tracer, meter, and logger
// handles plus a single Shutdown function that flushes all three.
package observability

import "log/slog"

// AppMode names the surface the binary was started as. It is attached to
// the OTel resource so backends can split CLI runs from MCP sessions.
type AppMode string

const (
	// ModeCLI marks a one-shot command invocation.
	ModeCLI AppMode = "cli"
	// ModeMCP marks a long-lived stdio MCP server.
	ModeMCP AppMode = "mcp"
)

// Config collects every knob Init understands. The zero value is not
// usable; start from DefaultConfig and override fields as needed.
type Config struct {
	// Identity, stamped onto the OTel resource.
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is the gRPC collector address ("host:4317"). When it
	// is empty no exporters are built and all providers are no-ops, so
	// instrumented code runs without a collector present.
	OTLPEndpoint string

	// OTLPHeaders carries extra gRPC metadata, typically auth tokens.
	OTLPHeaders map[string]string

	// OTLPInsecure switches the collector connection to plaintext.
	OTLPInsecure bool

	// DebugTrace samples every span and bypasses the scrape-span filter.
	// SampleRatio applies only when DebugTrace is off; zero keeps the SDK
	// default of parent-based always-on sampling.
	DebugTrace  bool
	SampleRatio float64

	// LogLevel is the minimum severity the slog handler emits.
	LogLevel slog.Level

	// LogJSON selects JSON log lines over the human text handler.
	LogJSON bool

	// ShutdownTimeoutSec bounds how long Shutdown waits for final flushes.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration used when nothing is specified:
// an info-level CLI process named after the binary, with export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "dwellscope",
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: 5,
	}
}
