package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/promptparty/server/internal/backend"
	"github.com/promptparty/server/internal/config"
	"github.com/promptparty/server/internal/game"
	"github.com/promptparty/server/internal/ws"
)

const version = "0.1.0"

func main() {
	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	cfg := config.Default()
	cobra.CheckErr(newCmd(&cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROMPTPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "promptparty",
		Short:         "Real-time prompt-and-vote party game server.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: PROMPTPARTY_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: PROMPTPARTY_PORT)")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "base URL of the player/prompt backend (env: PROMPTPARTY_BACKEND_URL)")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "language tag for stored-prompt lookup (env: PROMPTPARTY_LANGUAGE)")
	fs.StringVar(&cfg.SuggestTopic, "suggest-topic", cfg.SuggestTopic, "topic sent to the prompt suggestion service (env: PROMPTPARTY_SUGGEST_TOPIC)")
	fs.IntVar(&cfg.TotalRounds, "rounds", cfg.TotalRounds, "rounds per game (env: PROMPTPARTY_ROUNDS)")
	fs.IntVar(&cfg.MinPlayers, "min-players", cfg.MinPlayers, "players required to start a game (env: PROMPTPARTY_MIN_PLAYERS)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "phase exit-condition poll interval (env: PROMPTPARTY_POLL_INTERVAL)")
	fs.DurationVar(&cfg.MinDwell, "round-wait", cfg.MinDwell, "minimum display time between rounds (env: PROMPTPARTY_ROUND_WAIT)")
	fs.BoolVar(&cfg.ExportEnabled, "export", cfg.ExportEnabled, "export finished games to a results file (env: PROMPTPARTY_EXPORT)")
	fs.StringVar(&cfg.ExportFile, "export-file", cfg.ExportFile, "path of the results file (env: PROMPTPARTY_EXPORT_FILE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug logging (env: PROMPTPARTY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("promptparty v{{.Version}}\n")

	return cmd
}

func serve(cfg *config.Config) error {
	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		zerologlog.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	client := backend.New(cfg.BackendURL)

	registry := game.NewRegistry(game.RoomConfig{
		TotalRounds:  cfg.TotalRounds,
		MinPlayers:   cfg.MinPlayers,
		PollInterval: cfg.PollInterval,
		MinDwell:     cfg.MinDwell,
		Language:     cfg.Language,
		SuggestTopic: cfg.SuggestTopic,
		ExportFile:   exportFile(cfg),
	}, client, client, zerologlog.Logger)

	sock := ws.New(registry)
	sock.SetSuggester(client)
	registry.SetBroadcaster(sock)
	io := sock.Mount(r)
	defer io.Close()

	registerAuthRoutes(r, client)

	r.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active": registry.Count()})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	zerologlog.Info().Str("addr", addr).Str("backend", cfg.BackendURL).Msg("listening")
	return r.Run(addr)
}

func exportFile(cfg *config.Config) string {
	if !cfg.ExportEnabled {
		return ""
	}
	return cfg.ExportFile
}
