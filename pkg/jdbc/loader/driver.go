package loader

import (
	"context"
	"database/sql/driver"
	"io"
)

// Driver forwards every operation to a driver instantiated from an
// artifact. It is what gets registered with database/sql, so the registry
// never holds the loaded instance directly.
type Driver struct {
	className string
	artifact  string
	inner     driver.Driver
}

var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
)

// Wrap wraps a loaded driver instance.
func Wrap(className, artifact string, inner driver.Driver) *Driver {
	return &Driver{className: className, artifact: artifact, inner: inner}
}

// ClassName returns the name the driver is registered under.
func (d *Driver) ClassName() string { return d.className }

// Artifact returns the path the driver was loaded from.
func (d *Driver) Artifact() string { return d.artifact }

// Inner returns the wrapped driver.
func (d *Driver) Inner() driver.Driver { return d.inner }

// Open implements driver.Driver.
func (d *Driver) Open(name string) (driver.Conn, error) {
	return d.inner.Open(name)
}

// OpenConnector implements driver.DriverContext. When the wrapped driver
// has its own connectors they are forwarded as well.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	if dc, ok := d.inner.(driver.DriverContext); ok {
		c, err := dc.OpenConnector(name)
		if err != nil {
			return nil, err
		}
		return &connector{driver: d, inner: c}, nil
	}
	return &connector{driver: d, dsn: name}, nil
}

type connector struct {
	driver *Driver
	inner  driver.Connector
	dsn    string
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.inner != nil {
		return c.inner.Connect(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.driver.inner.Open(c.dsn)
}

// Driver returns the wrapper, so sql.DB.Driver reports what was registered.
func (c *connector) Driver() driver.Driver {
	return c.driver
}

// Close is called by sql.DB.Close.
func (c *connector) Close() error {
	if closer, ok := c.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
