package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/storagekit/webdav-go/driver"
	"github.com/storagekit/webdav-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagProfile    string
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg and activeProfile hold the configuration loaded by
// PersistentPreRunE, available to all subcommands afterwards.
var (
	resolvedCfg   *config.Config
	activeProfile config.Profile
)

// httpClientTimeout bounds every backend request. Chunk transfers move a
// few MiB each, so this also caps how long one chunk may take.
const httpClientTimeout = 10 * time.Minute

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "webdav-go",
		Short:         "Store and retrieve files on a WebDAV server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// help/completion don't need a config file.
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	cmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "config profile to use")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "errors only")

	cmd.AddCommand(
		newLsCmd(),
		newStatCmd(),
		newGetCmd(),
		newPutCmd(),
		newRmCmd(),
		newMvCmd(),
		newCpCmd(),
		newUploadCmd(),
		newUploadsCmd(),
	)

	return cmd
}

// loadConfig resolves the config file and profile into activeProfile.
func loadConfig() error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, profile, err := config.Resolve(path, flagProfile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	activeProfile = profile

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newDriver constructs the WebDAV driver for the active profile.
func newDriver(logger *slog.Logger) (*driver.WebDAV, error) {
	return driver.New(driver.Config{
		BaseURL:  activeProfile.BaseURL,
		Username: activeProfile.Username,
		Password: activeProfile.Password,
		Root:     activeProfile.Root,
	},
		driver.WithLogger(logger),
		driver.WithHTTPClient(defaultHTTPClient()),
	)
}
