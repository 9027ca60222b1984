// Package cli implements the canvas command.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/Sternrassler/canvas-api-client/internal/config"
	"github.com/Sternrassler/canvas-api-client/pkg/client"
	"github.com/Sternrassler/canvas-api-client/pkg/logging"
	"github.com/Sternrassler/canvas-api-client/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by subcommands, built before each run.
type app struct {
	cfg     *config.Config
	redis   *redis.Client
	session *session.Session
	client  *client.Client
	logger  zerolog.Logger
}

type rootFlags struct {
	envFile  string
	logLevel string
	pretty   bool
	asUser   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	a := &app{}

	cmd := &cobra.Command{
		Use:          "canvas",
		Short:        "Canvas LMS API client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load (missing is fine)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human-readable logs (overrides LOG_PRETTY)")
	cmd.PersistentFlags().StringVar(&flags.asUser, "as-user", "", "masquerade as this user id, e.g. 42 or sis_user_id:abc")

	cmd.AddCommand(loginCmd(a))
	cmd.AddCommand(logoutCmd(a))
	cmd.AddCommand(whoamiCmd(a))
	cmd.AddCommand(getCmd(a))
	cmd.AddCommand(serveCmd(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return err
	}

	if flags.logLevel != "" {
		level, err := logging.ParseLevel(flags.logLevel)
		if err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = level
	}
	if cmd.Flags().Changed("pretty") {
		cfg.LogPretty = flags.pretty
	}
	if flags.asUser != "" {
		cfg.MasqueradeAs = flags.asUser
	}
	a.cfg = cfg

	a.logger = logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}

	var store session.Store
	if redisOpts != nil {
		a.redis = redis.NewClient(redisOpts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		a.logger.Debug().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		store = session.NewRedisStore(a.redis, session.DefaultRedisPrefix)
	} else {
		store = session.NewMemoryStore()
	}

	a.session = session.New(store, logging.NewLogger("session"))
	if err := a.seedSession(ctx); err != nil {
		return err
	}

	clientCfg := client.DefaultConfig(a.session, a.redis, cfg.UserAgent)
	clientCfg.RequestsPerSecond = cfg.RequestsPerSecond
	if cfg.Masquerading() {
		clientCfg.Actor = session.MasqueradedUser
		clientCfg.MasqueradeAs = cfg.MasqueradeAs
	}

	a.client, err = client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create canvas client: %w", err)
	}

	a.logger = logging.WithCanvas(a.logger, cfg.CanvasDomain, clientCfg.Actor.String())
	return nil
}

// seedSession copies credentials given in the environment into the session.
// Values already in a persistent store are kept when the environment is silent.
func (a *app) seedSession(ctx context.Context) error {
	if a.cfg.CanvasDomain != "" {
		if err := a.session.SetDomain(ctx, a.cfg.CanvasDomain); err != nil {
			return fmt.Errorf("store domain: %w", err)
		}
		if err := a.session.SetProtocol(ctx, a.cfg.CanvasProtocol); err != nil {
			return fmt.Errorf("store protocol: %w", err)
		}
	}
	if a.cfg.CanvasToken != "" {
		if err := a.session.SetToken(ctx, a.cfg.CanvasToken); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	if err := a.session.SetUserAgent(ctx, a.cfg.UserAgent); err != nil {
		return fmt.Errorf("store user agent: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// persistent reports whether the session outlives the process.
func (a *app) persistent() bool {
	return a.redis != nil
}
