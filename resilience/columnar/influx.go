package columnar

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/LerianStudio/lib-resilience/resilience/driver"
	"github.com/LerianStudio/lib-resilience/resilience/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// ErrNotConnected indicates Connect has not been called or failed.
var ErrNotConnected = errors.New("columnar: not connected")

// Connection is a hub which deals with InfluxDB connections.
type Connection struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Logger log.Logger

	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking

	connected bool
	mu        sync.RWMutex
}

// Compile-time assertions: *Connection satisfies the store boundary.
var (
	_ driver.Queryer = (*Connection)(nil)
	_ driver.Pinger  = (*Connection)(nil)
)

// Connect builds the client and verifies connectivity with a ping.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Logger == nil {
		c.Logger = &log.NoneLogger{}
	}

	if c.URL == "" {
		return errors.New("columnar: URL is required")
	}

	c.Logger.Infof("Connecting to columnar store at %s...", c.URL)

	client := influxdb2.NewClient(c.URL, c.Token)

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to ping columnar store: %w", err)
	}

	if !ok {
		client.Close()
		return errors.New("columnar store did not respond to ping")
	}

	c.client = client
	c.queryAPI = client.QueryAPI(c.Org)
	c.writeAPI = client.WriteAPIBlocking(c.Org, c.Bucket)
	c.connected = true

	c.Logger.Info("Connected to columnar store")

	return nil
}

// IsConnected reports whether the client is initialized.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

// Close releases the client.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.queryAPI = nil
		c.writeAPI = nil
		c.connected = false
	}
}

// QueryContext runs a Flux query and materializes every record's values into
// a row map. Parameters, when present, are passed as Flux query params.
func (c *Connection) QueryContext(ctx context.Context, query string, params driver.Params) (driver.Rows, error) {
	c.mu.RLock()
	queryAPI := c.queryAPI
	c.mu.RUnlock()

	if queryAPI == nil {
		return nil, ErrNotConnected
	}

	var (
		result *api.QueryTableResult
		err    error
	)

	if len(params) > 0 {
		result, err = queryAPI.QueryWithParams(ctx, query, params)
	} else {
		result, err = queryAPI.Query(ctx, query)
	}

	if err != nil {
		return nil, fmt.Errorf("flux query failed: %w", err)
	}

	rows := driver.Rows{}

	for result.Next() {
		values := result.Record().Values()
		row := make(map[string]any, len(values))
		maps.Copy(row, values)

		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("flux result iteration failed: %w", err)
	}

	return rows, nil
}

// PingContext probes connectivity to the store.
func (c *Connection) PingContext(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return ErrNotConnected
	}

	ok, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("columnar ping failed: %w", err)
	}

	if !ok {
		return errors.New("columnar store did not respond to ping")
	}

	return nil
}

// WriteAPI exposes the blocking write API for callers ingesting points
// directly; writes are outside the read degradation ladder.
func (c *Connection) WriteAPI() (api.WriteAPIBlocking, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.writeAPI == nil {
		return nil, ErrNotConnected
	}

	return c.writeAPI, nil
}
