// Package config loads the dashboard server configuration.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML file at config.yaml or configs/config.yaml
//	3. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// All variables use the ENROLL_ prefix followed by the section name:
//
//	ENROLL_SERVER_PORT=8080
//	ENROLL_UPLOAD_MAX_BYTES=33554432
//	ENROLL_UPLOAD_PREAMBLE_LINES=4
//	ENROLL_SESSION_IDLE_TTL=2h
//	ENROLL_LOGGING_LEVEL=debug
//	ENROLL_SECURITY_ALLOWED_ORIGINS=http://localhost:3000,http://localhost:8080
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests that do not care about the environment should use Default.
package config
