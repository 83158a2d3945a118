package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/sight"
	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/pkg/adapters/file"
	"github.com/aretw0/sight/pkg/adapters/redis"
	"github.com/aretw0/sight/pkg/app"
	"github.com/aretw0/sight/pkg/com"
	"github.com/aretw0/sight/pkg/observability"
	"github.com/aretw0/sight/pkg/persistence/middleware"
	"github.com/aretw0/sight/pkg/ports"
	"github.com/aretw0/sight/pkg/services"
)

var rootCmd = &cobra.Command{
	Use:   "sight",
	Short: "Sight runs declarative service configurations",
	Long: `Sight builds the objects and services declared in a configuration, routes their
signals through named channels and follows the objects published at runtime.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the configurations")
	rootCmd.PersistentFlags().StringToString("field", nil, "Template field substituted in the configurations (name=value)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("redis", "", "Redis address of the preference store (files under <dir>/.sight/preferences when empty)")
	rootCmd.PersistentFlags().String("preference-key", os.Getenv("SIGHT_PREFERENCE_KEY"), "Hex encoded AES-256 key encrypting the stored preferences")
}

// launchSetup carries the observers a command installs on the launcher.
type launchSetup struct {
	hooks      app.Hooks
	proxyHooks com.ProxyHooks
}

// newLauncher builds a launcher from the persistent flags, with the stock services and the
// selected preference store. Lifecycle events are logged at debug level. The returned closer
// releases the launcher and the store.
func newLauncher(cmd *cobra.Command, setup launchSetup) (*sight.Launcher, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")
	fields, _ := cmd.Flags().GetStringToString("field")
	levelName, _ := cmd.Flags().GetString("log-level")

	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewWriter(cmd.ErrOrStderr(), level)

	store, storeCloser, err := preferenceStore(cmd, dir)
	if err != nil {
		return nil, nil, err
	}
	actx := app.NewContext(
		app.WithContextLogger(logger),
		app.WithPreferences(store),
		app.WithProxyHooks(setup.proxyHooks),
	)
	services.Register(actx.ServiceTypes)

	launcher, err := sight.New(dir,
		sight.WithContext(actx),
		sight.WithFields(fields),
		sight.WithLogger(logger),
		sight.WithLifecycleHooks(observability.Chain(observability.LogHooks(logger), setup.hooks)),
	)
	if err != nil {
		actx.Close()
		storeCloser.Close()
		return nil, nil, err
	}
	return launcher, func() {
		launcher.Close()
		if err := storeCloser.Close(); err != nil {
			logger.Warn("cannot close preference store", "err", err)
		}
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func preferenceStore(cmd *cobra.Command, dir string) (ports.PreferenceStore, io.Closer, error) {
	addr, _ := cmd.Flags().GetString("redis")
	hexKey, _ := cmd.Flags().GetString("preference-key")

	var store ports.PreferenceStore
	var closer io.Closer = nopCloser{}
	if addr != "" {
		s := redis.New(addr, "", 0)
		store, closer = s, s
	} else {
		store = file.NewStore(filepath.Join(dir, ".sight", "preferences"))
	}
	if hexKey == "" {
		return store, closer, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("invalid preference key: %w", err)
	}
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("invalid preference key: %w", err)
	}
	return encrypt(store), closer, nil
}
