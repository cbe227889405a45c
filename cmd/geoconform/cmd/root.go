package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "geoconform",
	Short:        "Check that geospatial format drivers report what a dataset is expected to contain",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func die(s string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(s, args...))
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.geoconform.yaml)")
	flags.IntP("verbose", "v", 0, "log verbosity")
	flags.String("driver-path", "", "GDAL_DRIVER_PATH for plugin drivers")
	flags.StringToString("alias", nil, "extra driver names, as alias=DRIVER")
	cobra.CheckErr(viper.BindPFlag("verbose", flags.Lookup("verbose")))
	cobra.CheckErr(viper.BindPFlag("driver_path", flags.Lookup("driver-path")))
	cobra.CheckErr(viper.BindPFlag("aliases", flags.Lookup("alias")))

	viper.SetDefault("aliases", defaultAliases)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".geoconform")
	}
	viper.SetEnvPrefix("GEOCONFORM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		logger().V(1).Info("using config file", "path", viper.ConfigFileUsed())
	}
}

func logger() logr.Logger {
	stdr.SetVerbosity(viper.GetInt("verbose"))
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags))
}
