package geoconform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

// Registry is the set of drivers available to cases. It is populated at
// start-up and frozen before cases run; a frozen registry is read-only and
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers []Driver
	byName  map[string]Driver
	frozen  bool
	log     logr.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for open diagnostics.
func WithRegistryLogger(l logr.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName: make(map[string]Driver),
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func driverKey(name string) string { return strings.ToUpper(name) }

// Register adds d. Driver names are case-insensitive.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, d.Name())
	}
	key := driverKey(d.Name())
	if _, ok := r.byName[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDriver, d.Name())
	}
	r.byName[key] = d
	r.drivers = append(r.drivers, d)
	r.log.V(1).Info("registered driver", "driver", d.Name())
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(drivers ...Driver) *Registry {
	for _, d := range drivers {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Driver looks up a driver by name. A missing driver is reported as a
// CheckError of kind KindDriverNotFound.
func (r *Registry) Driver(name string) (Driver, error) {
	r.mu.RLock()
	d, ok := r.byName[driverKey(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &CheckError{
			Kind:     KindDriverNotFound,
			Check:    "driver",
			Expected: name,
			Actual:   "not registered",
		}
	}
	return d, nil
}

// Names returns the registered driver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.drivers))
	for _, d := range r.drivers {
		names = append(names, d.Name())
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) ordered() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Driver(nil), r.drivers...)
}

// Open opens path with the named driver. An empty driverName tries every
// driver in registration order. A path of the form DRIVER:path[:sub] whose
// prefix names a registered driver selects that driver and subdataset.
//
// An unknown driver yields KindDriverNotFound and Open is never attempted;
// any failure of the driver itself yields an *OpenError.
func (r *Registry) Open(ctx context.Context, driverName, path string) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := OpenRequest{Path: path}
	if dp := ParseDatasetPath(path); dp.Driver != "" {
		if _, err := r.Driver(dp.Driver); err == nil {
			if driverName != "" && !strings.EqualFold(driverName, dp.Driver) {
				return nil, &OpenError{
					Driver: driverName,
					Path:   path,
					Err:    fmt.Errorf("path names driver %s", dp.Driver),
				}
			}
			driverName = dp.Driver
			req = OpenRequest{Path: dp.Path, Subdataset: dp.Subdataset}
		}
	}

	if driverName == "" {
		return r.probe(ctx, req, path)
	}

	d, err := r.Driver(driverName)
	if err != nil {
		return nil, err
	}
	ds, err := d.Open(ctx, req)
	if err != nil {
		r.log.V(1).Info("open failed", "driver", d.Name(), "path", path, "error", err.Error())
		return nil, &OpenError{Driver: d.Name(), Path: path, Err: err}
	}
	r.log.V(1).Info("opened dataset", "driver", d.Name(), "path", path)
	return ds, nil
}

func (r *Registry) probe(ctx context.Context, req OpenRequest, path string) (Dataset, error) {
	var errs []error
	for _, d := range r.ordered() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := d.Open(ctx, req)
		if err == nil {
			r.log.V(1).Info("opened dataset", "driver", d.Name(), "path", path)
			return ds, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
	}
	errs = append([]error{ErrNoDriverMatched}, errs...)
	return nil, &OpenError{Path: path, Err: errors.Join(errs...)}
}
