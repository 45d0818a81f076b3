package loader

import (
	"database/sql/driver"
	"fmt"
	"plugin"
	"reflect"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// PluginOpener loads drivers from Go plugins built with
// -buildmode=plugin. Each plugin is its own loading context, so identically
// named symbols in different plugins cannot collide.
//
// The looked-up symbol is the last dot-separated part of the class name:
// "org.postgresql.Driver" looks up "Driver". The symbol may be a
// driver.Driver variable or a constructor returning one.
type PluginOpener struct{}

// Open implements Opener.
func (PluginOpener) Open(artifactPath, className string) (driver.Driver, error) {
	p, err := plugin.Open(artifactPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDriver, "failed to open plugin")
	}
	name := SymbolName(className)
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDriver, fmt.Sprintf("plugin has no symbol %q", name))
	}
	return fromSymbol(sym)
}

// SymbolName returns the plugin symbol looked up for className.
func SymbolName(className string) string {
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		return className[i+1:]
	}
	return className
}

var driverType = reflect.TypeOf((*driver.Driver)(nil)).Elem()

func fromSymbol(sym plugin.Symbol) (driver.Driver, error) {
	switch s := sym.(type) {
	case *driver.Driver:
		return *s, nil
	case func() driver.Driver:
		return s(), nil
	case func() (driver.Driver, error):
		return s()
	case driver.Driver:
		return s, nil
	}

	// Exported variables are looked up as pointers, e.g. *(*pq.Driver).
	v := reflect.ValueOf(sym)
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().Implements(driverType) {
		if d, ok := v.Elem().Interface().(driver.Driver); ok && d != nil {
			return d, nil
		}
	}
	return nil, errors.New(errors.ErrorTypeDriver, fmt.Sprintf("symbol of type %T is not a database driver", sym))
}
