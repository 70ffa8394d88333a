// Command tmsctl is a terminal client for InfiniteTMS. It keeps the signed-in
// session in a local file and renews the access token in the background.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/client"
	"infinitetms/internal/logger"
	"infinitetms/internal/session"
)

var (
	configPath string
	serverURL  string
	debug      bool
)

type app struct {
	cfg     *cliConfig
	api     *client.Client
	session *session.Manager
	lg      *zap.SugaredLogger
}

func newApp(extra ...session.Option) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server = serverURL
	}
	lg := logger.NewConsole(debug || cfg.Debug)
	api := client.New(cfg.Server, nil)
	opts := []session.Option{}
	if cfg.RenewPeriod != session.DefaultRenewPeriod {
		opts = append(opts, session.WithRenewPeriod(cfg.RenewPeriod))
	}
	m := session.NewManager(api, session.NewFileStore(cfg.SessionFile), lg, append(opts, extra...)...)
	api.SetTokenSource(m.AccessToken)
	return &app{cfg: cfg, api: api, session: m, lg: lg}, nil
}

// signedIn restores the stored session and trades the refresh token for a
// fresh access token, since the stored one may have expired while tmsctl
// was not running.
func (a *app) signedIn(ctx context.Context) error {
	ok, err := a.session.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not signed in, run `tmsctl login`", apperr.ErrAuth)
	}
	if err := a.session.Renew(ctx); err != nil {
		return fmt.Errorf("session expired, run `tmsctl login`: %w", err)
	}
	return nil
}

func (a *app) close() {
	a.session.Close()
	_ = a.lg.Sync()
}

// withApp wraps a command body that needs a live session.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.signedIn(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd.Context(), a, args)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tmsctl",
	Short:         "Terminal client for InfiniteTMS",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $TMSCTL_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL, overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
