// Package columnar provides the analytical store adapter: an InfluxDB-backed
// implementation of the driver interfaces consumed by the resilience layer.
// Queries are Flux; each record's values become one row map.
package columnar
