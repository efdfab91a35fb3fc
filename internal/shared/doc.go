// Package shared holds helpers used across the dashboard packages that
// belong to no single layer.
//
// The testutil subpackage provides a capturing slog handler and builders
// for enrollment uploads. It must only depend on pkg/contracts so that any
// internal package can use it from its tests.
package shared
