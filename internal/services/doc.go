// Package services sits between the HTTP handlers and the session store.
//
// DashboardService translates requests into session events, wraps each one
// in a span, records the dashboard metrics and publishes the resulting
// snapshot to websocket clients. HealthService answers the health, readiness
// and version endpoints.
//
// Services depend on small interfaces (SessionStore, SnapshotPublisher,
// SessionCounter) so tests can substitute mocks:
//
//	store := new(MockSessionStore)
//	store.On("Snapshot", "s-1").Return(snap, nil)
//	svc := NewDashboardService(store, nil, nil, logger)
package services
