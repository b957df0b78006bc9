// Command pgsqlite serves a SQLite database over the PostgreSQL wire
// protocol. It uses cobra+viper instead of a hand-rolled flag.FlagSet
// so every setting is reachable by flag, environment variable
// (PGSQLITE_*), or config file.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgsqlite/pgsqlite/pkg/dispatcher"
	pgerr "github.com/pgsqlite/pgsqlite/pkg/errors"
	"github.com/pgsqlite/pgsqlite/pkg/log"
	"github.com/pgsqlite/pgsqlite/pkg/session"
	"github.com/pgsqlite/pgsqlite/pkg/storage"
	"github.com/pgsqlite/pgsqlite/pkg/tlsutil"
	"github.com/pgsqlite/pgsqlite/pkg/version"
	"github.com/pgsqlite/pgsqlite/pkg/wire"
)

// Exit codes, the CLI surface.
const (
exitOK = 0
exitConfigError = 1
exitMigrationError = 2
exitSchemaDrift = 3
exitBindError = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	exitCode := exitOK
	cmd := newRootCmd(&exitCode)
	cmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if exitCode == exitOK {
			exitCode = exitConfigError
		}
	}
	return exitCode
}

func newRootCmd(exitCode *int) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use: "pgsqlite",
		Short: "Serve a SQLite database over the PostgreSQL wire protocol",
		Long: `pgsqlite speaks the PostgreSQL v3 wire protocol to a SQLite file,
		translating DDL/DML on the way in and type-encoding results on the way out
		so ordinary Postgres clients and drivers can talk to it unmodified.`,
		SilenceUsage: true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					*exitCode = exitConfigError
					return fmt.Errorf("reading config file: %w", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.GetBool("version") {
				fmt.Fprintln(os.Stdout, version.Full())
				return nil
			}
			return serve(cmd.Context(), v, exitCode)
		},
	}

	flags := cmd.Flags()
	flags.String("database", ":memory:", "SQLite database path (or :memory:)")
	flags.Int("port", 5432, "TCP port to listen on")
	flags.String("socket-dir", "", "Unix socket directory (empty disables the socket listener)")
	flags.String("journal-mode", "WAL", "SQLite journal_mode PRAGMA (WAL, DELETE, TRUNCATE, MEMORY, OFF)")
	flags.String("synchronous", "NORMAL", "SQLite synchronous PRAGMA (OFF, NORMAL, FULL, EXTRA)")
	flags.Int("cache-size", 2000, "SQLite cache_size PRAGMA, in KB")
	flags.Int("mmap-size", 256, "SQLite mmap_size PRAGMA, in MB")
	flags.Bool("watch-database", false, "reopen/refresh the cached schema when the database file changes on disk")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")
	flags.Bool("tls", false, "accept TLS connections (a new self-signed certificate is generated at each start)")
	flags.String("tls-cert-dir", "", "directory the self-signed TLS certificate and key are written to (defaults to the database's directory)")
	flags.Bool("require-scram", false, "require SCRAM-SHA-256 authentication instead of trusting every connection")
	flags.StringSlice("scram-user", nil, "user=password pair accepted by SCRAM authentication (repeatable)")
	flags.Bool("no-banner", false, "suppress the startup banner")
	flags.Bool("version", false, "print version information and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (YAML, TOML, or JSON)")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("pgsqlite")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// serve builds the storage engine, runs migrations, and blocks serving
// wire connections until the context is cancelled (SIGINT/SIGTERM).
func serve(ctx context.Context, v *viper.Viper, exitCode *int) error {
	logLevel, err := log.ParseLevel(v.GetString("log-level"))
	if err != nil {
		*exitCode = exitConfigError
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logFormat := log.FormatText
	if v.GetString("log-format") == "json" {
		logFormat = log.FormatJSON
	}
	logger := log.New(log.Config{
		DefaultLevel: logLevel,
		Output: os.Stderr,
		Format: logFormat,
	})
	defer logger.Close()

	storageCfg := storage.Config{
		Database: v.GetString("database"),
		JournalMode: storage.JournalMode(strings.ToUpper(v.GetString("journal-mode"))),
		Synchronous: strings.ToUpper(v.GetString("synchronous")),
		CacheSizeKB: v.GetInt("cache-size"),
		MmapSizeMB: v.GetInt("mmap-size"),
		Watch: v.GetBool("watch-database"),
	}
	engine := storage.New(storageCfg, logger)

	bootstrapDB, err := engine.Open(ctx)
	if err != nil {
		*exitCode = exitConfigError
		return fmt.Errorf("opening database: %w", err)
	}
	if err := engine.EnsureMigrated(ctx, bootstrapDB); err != nil {
		bootstrapDB.Close()
		var pgErr *pgerr.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgerr.ErrDataCorrupted {
			*exitCode = exitSchemaDrift
		} else {
			*exitCode = exitMigrationError
		}
		return fmt.Errorf("migrating schema: %w", err)
	}
	bootstrapDB.Close()

	if storageCfg.Watch && storageCfg.Database != ":memory:" {
		watcher, err := storage.NewFileWatcher(storageCfg.Database, engine, logger)
		if err != nil {
			logger.System().Warn("schema watcher not started", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.System().Warn("schema watcher not started", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	sessMgr := session.NewManager(engine, logger)
	dispatch := dispatcher.New(engine, logger)

	wireCfg := wire.Config{
		Address: fmt.Sprintf(":%d", v.GetInt("port")),
		RequireSCRAM: v.GetBool("require-scram"),
		SCRAMUsers: parseSCRAMUsers(v.GetStringSlice("scram-user")),
	}
	if v.GetBool("tls") {
		certDir := v.GetString("tls-cert-dir")
		if certDir == "" {
			certDir = certDirFor(storageCfg.Database)
		}
		certFile, keyFile, err := tlsutil.GenerateAndSaveCert(certDir)
		if err != nil {
			*exitCode = exitConfigError
			return fmt.Errorf("generating TLS certificate: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			*exitCode = exitConfigError
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		wireCfg.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion: tls.VersionTLS12,
		}
	}

	listener := wire.New(wireCfg, sessMgr, dispatch, logger)
	if err := listener.Listen(); err != nil {
		*exitCode = exitBindError
		return fmt.Errorf("binding listener: %w", err)
	}
	listeners := []*wire.Listener{listener}

	if socketDir := v.GetString("socket-dir"); socketDir != "" {
		socketCfg := wireCfg
		socketCfg.Network = "unix"
		socketCfg.Address = filepath.Join(socketDir, fmt.Sprintf(".s.PGSQL.%d", v.GetInt("port")))
		socketListener := wire.New(socketCfg, sessMgr, dispatch, logger)
		if err := socketListener.Listen(); err != nil {
			listener.Close()
			*exitCode = exitBindError
			return fmt.Errorf("binding unix socket: %w", err)
		}
		listeners = append(listeners, socketListener)
	}

	if !v.GetBool("no-banner") {
		printBanner(os.Stdout, storageCfg, wireCfg, listeners)
	}
	logger.System().Info("pgsqlite started", "address", wireCfg.Address, "database", storageCfg.Database)

	serveErr := make(chan error, len(listeners))
	for _, l := range listeners {
		l := l
		go func() { serveErr <- l.Serve() }()
	}

	select {
	case <-ctx.Done():
		logger.System().Info("shutdown signal received")
		for _, l := range listeners {
			l.Close()
		}
		for range listeners {
			<-serveErr
		}
		return nil
	case err := <-serveErr:
		for _, l := range listeners {
			l.Close()
		}
		return err
	}
}

func parseSCRAMUsers(pairs []string) map[string]string {
	users := make(map[string]string, len(pairs))
	for _, p := range pairs {
		user, password, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		users[user] = password
	}
	return users
}

func certDirFor(database string) string {
	if database == ":memory:" || database == "" {
		return "."
	}
	return filepath.Dir(database)
}

func printBanner(w *os.File, storageCfg storage.Config, wireCfg wire.Config, listeners []*wire.Listener) {
	fmt.Fprintf(w, "pgsqlite %s\n", version.Full())
	fmt.Fprintf(w, " Database: %s\n", storageCfg.Database)
	for _, l := range listeners {
		fmt.Fprintf(w, " Listening: %s\n", l.Addr())
	}
	fmt.Fprintf(w, " Journal mode: %s, synchronous: %s\n", storageCfg.JournalMode, storageCfg.Synchronous)
	if wireCfg.TLSConfig != nil {
		fmt.Fprintln(w, " TLS: enabled")
	}
	if wireCfg.RequireSCRAM {
		fmt.Fprintln(w, " Authentication: SCRAM-SHA-256")
	} else {
		fmt.Fprintln(w, " Authentication: trust")
	}
}
