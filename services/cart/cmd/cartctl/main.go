// Command cartctl inspects and maintains stored carts and quotes catalog
// prices from the command line.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	pkgconfig "github.com/utafrali/EcommerceGo/pkg/config"
	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/services/cart/internal/config"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// globalFlags map onto the service's environment variables so the CLI and
// the server read the same cart.
type globalFlags struct {
	configFile string
	backend    string
	dir        string
	key        string
	redisAddr  string
	catalog    string
	logLevel   string
}

func (f *globalFlags) overrides() map[string]string {
	out := map[string]string{}
	set := func(name, value string) {
		if value != "" {
			out[name] = value
		}
	}
	set("CART_STORAGE_BACKEND", f.backend)
	set("CART_STORAGE_DIR", f.dir)
	set("CART_STORAGE_KEY", f.key)
	set("REDIS_ADDR", f.redisAddr)
	set("CART_CATALOG_FILE", f.catalog)
	return out
}

// load reads the service configuration: environment first, then the
// --config file, then individual flags.
func (f *globalFlags) load() (*config.Config, error) {
	var file map[string]string
	if f.configFile != "" {
		var err error
		if file, err = pkgconfig.ReadEnvFile(f.configFile); err != nil {
			return nil, err
		}
	}
	return config.LoadWithOverrides(pkgconfig.Merge(file, f.overrides()))
}

func (f *globalFlags) logger() *slog.Logger {
	return logger.NewWithWriter("cartctl", f.logLevel, os.Stderr)
}

func buildRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Inspect and maintain stored shopping carts",
		Long: `cartctl reads the same configuration as the cart service. Flags override
the matching environment variables (CART_STORAGE_BACKEND, CART_STORAGE_DIR,
CART_STORAGE_KEY, REDIS_ADDR, CART_CATALOG_FILE). --config names a YAML file
of further variables; flags still win over it.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML file of environment variable overrides")
	pf.StringVar(&flags.backend, "backend", "", "Storage backend: file or redis")
	pf.StringVar(&flags.dir, "dir", "", "Directory for the file backend")
	pf.StringVar(&flags.key, "key", "", "Storage key of the cart")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Redis address for the redis backend")
	pf.StringVar(&flags.catalog, "catalog", "", "Catalog file (YAML or JSON)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(
		buildInspectCmd(flags),
		buildMigrateCmd(flags),
		buildQuoteCmd(flags),
	)
	return rootCmd
}
