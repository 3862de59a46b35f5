package cmd

import (
	"os"
	"strings"

	"github.com/joshyorko/bomforge/anywork"
	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/pretty"
	"github.com/joshyorko/bomforge/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configFile  string
	silentFlag  bool
	debugFlag   bool
	traceFlag   bool
	jsonFlag    bool
	lineNumbers bool

	config   *viper.Viper
	bindings = make(map[string]*pflag.Flag)
)

var rootCmd = &cobra.Command{
	Use:   common.Product,
	Short: "bomforge assembles CycloneDX SBOMs from a project graph and scanned fragments.",
	Long: `bomforge builds a custom software SBOM for each target project from a
declared project graph, merges externally scanned dependency metadata
(.NET build output, vendored JavaScript packages) into it, and scans
container image archives into a sibling container image SBOM.

Configuration comes from bomforge.yaml, BOMFORGE_* environment variables
and command line flags, later ones winning.`,
	SilenceUsage: true,
}

// Execute runs the command line. Failures stop through pretty.Exit, so the
// caller must recover common.ExitCode panics.
func Execute() {
	rootCmd.SetArgs(os.Args[1:])
	err := rootCmd.Execute()
	pretty.Guard(err == nil, 1, "[%s %s] %v", common.Product, common.Version, err)
}

// bindSetting makes a command flag override the configuration key.
func bindSetting(key string, flag *pflag.Flag) {
	bindings[key] = flag
}

func initConfig() {
	common.DefineVerbosity(silentFlag, debugFlag, traceFlag)
	common.LogLinenumbers = lineNumbers
	pretty.Setup()

	config = settings.New(configFile)
	err := settings.Read(config)
	pretty.Guard(err == nil, 1, "%v", err)
	for key, flag := range bindings {
		err = config.BindPFlag(key, flag)
		pretty.Guard(err == nil, 1, "Binding flag %q: %v", flag.Name, err)
	}
	current, err := settings.Summon(config)
	pretty.Guard(err == nil, 1, "%v", err)
	if current.Workers > 0 {
		anywork.ScaleTo(current.Workers)
	}
	common.Trace("Configuration keys in use: %s", strings.Join(config.AllKeys(), ", "))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file to use instead of ./bomforge.yaml.")
	rootCmd.PersistentFlags().BoolVarP(&silentFlag, "silent", "", false, "Be less verbose on output.")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "", false, "Show debug messages.")
	rootCmd.PersistentFlags().BoolVarP(&traceFlag, "trace", "", false, "Show trace messages (implies debug).")
	rootCmd.PersistentFlags().BoolVarP(&lineNumbers, "numbered", "", false, "Put line numbers on log output.")
}
