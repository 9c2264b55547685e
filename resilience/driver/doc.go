// Package driver defines the boundary between the resilience layer and the
// underlying store drivers.
//
// The executors in this library only ever see these interfaces; concrete
// implementations live in the postgres and columnar packages or in the
// embedding service.
package driver
