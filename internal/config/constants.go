package config

import "time"

// Application constants
const (
	AppName   = "Enrollment Dashboard"
	EnvPrefix = "ENROLL"

	DefaultPort            = 8080
	DefaultUploadMaxBytes  = 32 << 20
	DefaultPreambleLines   = 4
	DefaultSessionIdleTTL  = 2 * time.Hour
	DefaultSweepInterval   = 5 * time.Minute
	DefaultSessionCookie   = "enroll_session"
	DefaultRequestTimeout  = 60 * time.Second
	DefaultLogFilePath     = "logs/app.log"
	WebSocketPingPeriod    = 30 * time.Second
	WebSocketPongWait      = 60 * time.Second
	WebSocketSendQueueSize = 16
)

// Endpoints
const (
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// Log outputs
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)
