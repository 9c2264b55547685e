// Package postgres provides the relational store adapter: a primary/replica
// PostgreSQL connection hub implementing the driver interfaces consumed by
// the resilience layer.
//
// It focuses on predictable connection lifecycle and configuration defaults
// that are safe for service startup and shutdown flows.
package postgres
