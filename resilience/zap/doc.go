// Package zap provides the production implementation of the log.Logger
// interface backed by go.uber.org/zap.
package zap
