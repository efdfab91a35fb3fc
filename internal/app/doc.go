// Package app wires the enrollment dashboard together: telemetry, the
// session store, the websocket hub, the dashboard services and the chi
// router, and runs them under one errgroup.
//
// # Initialization Flow
//
//  1. The caller loads configuration and initializes the logger
//  2. NewApplication sets up OpenTelemetry and the business metrics
//  3. The loader, session store and hub are created and the hub is
//     registered as a session listener
//  4. Services and handlers are built and mounted on the router
//
// # Usage
//
//	a, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
//
// Run returns when ctx is cancelled or the listener fails. Shutdown drains
// in-flight requests for Server.ShutdownTimeout, closes websocket clients
// and flushes telemetry. The package never calls os.Exit.
package app
