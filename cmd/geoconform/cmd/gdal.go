//go:build gdal

package cmd

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/gdal"
)

func init() {
	rootCmd.PersistentFlags().StringSlice("gdal-drivers", nil, "GDAL short names to register")
	cobra.CheckErr(viper.BindPFlag("gdal_drivers", rootCmd.PersistentFlags().Lookup("gdal-drivers")))
	registerHooks = append(registerHooks, registerGDAL)
}

func registerGDAL(reg *geoconform.Registry, log logr.Logger) error {
	names := viper.GetStringSlice("gdal_drivers")
	if len(names) == 0 {
		return nil
	}
	registered, err := gdal.Register(reg, names,
		gdal.WithDriverPath(viper.GetString("driver_path")),
		gdal.WithLogger(log.WithName("gdal")),
	)
	if err != nil {
		return err
	}
	log.V(1).Info("registered gdal drivers", "drivers", registered)
	return nil
}
