package odbcscan

import (
	"context"
	"database/sql/driver"
)

// Connector implements driver.Connector for efficient connection pooling.
// Use it with sql.OpenDB to pass options:
//
//	c, err := odbcscan.NewConnector(dsn, odbcscan.WithTimestampNS(true))
//	db := sql.OpenDB(c)
type Connector struct {
	dsn    string
	driver *Driver
	cfg    Config
	api    API
}

// NewConnector loads the driver manager and returns a Connector for dsn.
func NewConnector(dsn string, opts ...Option) (*Connector, error) {
	cfg := newConfig(opts...)
	api, err := cfg.load()
	if err != nil {
		return nil, err
	}
	return &Connector{dsn: dsn, cfg: cfg, api: api}, nil
}

// Connect establishes a new connection to the database
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := Open(c.api, c.dsn, "", "", c.cfg.Overrides)
	if err != nil {
		return nil, err
	}
	conn.textUnits, conn.binBytes = c.cfg.TextBufferUnits, c.cfg.BinaryBufferBytes
	return &Conn{conn: conn}, nil
}

// Driver returns the underlying Driver
func (c *Connector) Driver() driver.Driver {
	if c.driver == nil {
		return &Driver{}
	}
	return c.driver
}

// Ensure Connector implements driver.Connector
var _ driver.Connector = (*Connector)(nil)
