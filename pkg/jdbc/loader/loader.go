// Package loader loads database drivers from external artifacts at runtime
// and registers them with database/sql exactly once per process.
//
// database/sql keeps a process-wide driver registry that panics on
// duplicate names. Every access this module makes to that registry goes
// through Load, under one mutex.
package loader

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/metrics"
)

// Opener instantiates the driver named className from the artifact at
// artifactPath, in a loading context of its own.
type Opener interface {
	Open(artifactPath, className string) (driver.Driver, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(artifactPath, className string) (driver.Driver, error)

// Open calls f.
func (f OpenerFunc) Open(artifactPath, className string) (driver.Driver, error) {
	return f(artifactPath, className)
}

var (
	mu     sync.Mutex
	loaded = map[string]*Driver{}
)

// Load loads className from a Go plugin at artifactPath. See LoadWith.
func Load(className, artifactPath string) (bool, error) {
	return LoadWith(PluginOpener{}, className, artifactPath)
}

// LoadWith loads className from artifactPath through opener and registers
// it with database/sql under className.
//
// It returns true only when this call registered the driver. A driver
// already loaded, a registry name already taken, and any failure to
// instantiate or register are all reported as false; failures are logged.
// The only error returned is a configuration error for an unusable
// artifact path or an empty class name.
func LoadWith(opener Opener, className, artifactPath string) (ok bool, err error) {
	if className == "" {
		return false, errors.New(errors.ErrorTypeConfig, "driver class name is empty")
	}
	if err := checkArtifact(artifactPath); err != nil {
		return false, err
	}

	log := logger.With(
		zap.String("component", "driver_loader"),
		zap.String("driver", className),
		zap.String("artifact", artifactPath),
	)

	mu.Lock()
	defer mu.Unlock()

	if _, found := loaded[className]; found {
		log.Debug("driver is already loaded")
		metrics.DriverLoads.WithLabelValues(className, metrics.DriverAlreadyLoaded).Inc()
		return false, nil
	}
	if slices.Contains(sql.Drivers(), className) {
		log.Warn("driver name is already registered by another package")
		metrics.DriverLoads.WithLabelValues(className, metrics.DriverAlreadyLoaded).Inc()
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("couldn't load driver", zap.Any("panic", r))
			metrics.DriverLoads.WithLabelValues(className, metrics.DriverFailed).Inc()
			ok, err = false, nil
		}
	}()

	log.Debug("loading driver")
	inner, openErr := opener.Open(artifactPath, className)
	if openErr == nil && inner == nil {
		openErr = errors.New(errors.ErrorTypeDriver, "opener returned a nil driver")
	}
	if openErr != nil {
		log.Error("couldn't load driver", zap.Error(openErr))
		metrics.DriverLoads.WithLabelValues(className, metrics.DriverFailed).Inc()
		return false, nil
	}

	w := Wrap(className, artifactPath, inner)
	sql.Register(className, w)
	loaded[className] = w

	log.Info("driver has been loaded")
	metrics.DriverLoads.WithLabelValues(className, metrics.DriverLoaded).Inc()
	return true, nil
}

// Lookup returns the wrapper registered by this package for className.
func Lookup(className string) (*Driver, bool) {
	mu.Lock()
	defer mu.Unlock()
	d, ok := loaded[className]
	return d, ok
}

// Loaded returns the class names loaded by this package, sorted.
func Loaded() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(loaded))
	for name := range loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered reports whether database/sql has a driver named className,
// whoever registered it.
func Registered(className string) bool {
	return slices.Contains(sql.Drivers(), className)
}

func checkArtifact(path string) error {
	if path == "" {
		return errors.New(errors.ErrorTypeConfig, "driver artifact path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid driver artifact").
			WithDetail("path", path)
	}
	if info.IsDir() {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("invalid driver artifact %s: is a directory", path))
	}
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "driver artifact is not readable").
			WithDetail("path", path)
	}
	return f.Close()
}
