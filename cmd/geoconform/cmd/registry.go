package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/cellgrid"
	"github.com/tingold/geoconform/fgb"
)

// defaultAliases register the built-in drivers under the names used by the
// GRASS sample suites.
var defaultAliases = map[string]string{
	"GRASS":     cellgrid.DriverName,
	"OGR_GRASS": fgb.DriverName,
}

// builtinDriver constructs the built-in driver target under name.
func builtinDriver(target, name string) (geoconform.Driver, bool) {
	switch strings.ToUpper(target) {
	case cellgrid.DriverName:
		return cellgrid.New(cellgrid.WithName(name)), true
	case strings.ToUpper(fgb.DriverName):
		return fgb.NewDriver(name), true
	}
	return nil, false
}

// registerHooks add optional drivers, such as GDAL when built with the gdal
// tag.
var registerHooks []func(reg *geoconform.Registry, log logr.Logger) error

func newRegistry(log logr.Logger) (*geoconform.Registry, error) {
	reg := geoconform.NewRegistry(geoconform.WithRegistryLogger(log))
	if err := reg.Register(cellgrid.New()); err != nil {
		return nil, err
	}
	if err := reg.Register(fgb.NewDriver(fgb.DriverName)); err != nil {
		return nil, err
	}

	aliases := make(map[string]string, len(defaultAliases))
	for alias, target := range defaultAliases {
		aliases[strings.ToUpper(alias)] = target
	}
	for alias, target := range viper.GetStringMapString("aliases") {
		aliases[strings.ToUpper(alias)] = target
	}
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	for _, alias := range names {
		d, ok := builtinDriver(aliases[alias], alias)
		if !ok {
			return nil, fmt.Errorf("alias %s: unknown driver %s", alias, aliases[alias])
		}
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}

	for _, hook := range registerHooks {
		if err := hook(reg, log); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
