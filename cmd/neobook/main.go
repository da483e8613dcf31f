package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/embedding"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/core/llm"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/dialogue"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/extractor"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/knowledge"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/ai/metrics"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/internal/profile"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/internal/version"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps/channels"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/chat_apps/channels/telegram"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/email"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/plugin/webhook"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server"
	apiv1 "github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/router/api/v1"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/server/service/booking"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "neobook",
	Short: "A conversational booking assistant: book, move, and cancel appointments in natural language, grounded in your own documents.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// systemd units carry their environment; .env is for direct runs.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			os.Exit(1)
		}
		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			os.Exit(1)
		}

		deps, exporter, err := wireServices(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to wire services", "error", err)
			os.Exit(1)
		}

		s := server.NewServer(instanceProfile, storeInstance, deps, exporter)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			cancel()
		}()

		printGreetings(instanceProfile)
		if err := s.Start(ctx); err != nil {
			slog.Error("server exited with error", "error", err)
			os.Exit(1)
		}
	},
}

// wireServices builds the dialogue pipeline and its collaborators from the
// profile. LLM and embedding are optional: without them the assistant runs
// on the rule layer only and knowledge endpoints report unavailable.
func wireServices(ctx context.Context, p *profile.Profile, st *store.Store) (*apiv1.Dependencies, *metrics.Exporter, error) {
	exporter := metrics.NewExporter(metrics.DefaultConfig())

	var llmService llm.Service
	if p.IsAIEnabled() {
		var err error
		llmService, err = llm.NewService(&llm.Config{
			Provider: p.LLMProvider,
			Model:    p.LLMModel,
			APIKey:   p.LLMAPIKey,
			BaseURL:  p.LLMBaseURL,
			Timeout:  p.LLMTimeout,
		})
		if err != nil {
			slog.Warn("LLM service unavailable, running rule layer only", "error", err)
		} else {
			slog.Info("LLM service initialized", "provider", p.LLMProvider, "model", p.LLMModel)
			go func() {
				warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
				defer warmupCancel()
				llmService.Warmup(warmupCtx)
			}()
		}
	}

	var embedder embedding.Provider
	if p.EmbeddingAPIKey != "" {
		var err error
		embedder, err = embedding.NewProvider(&embedding.Config{
			BaseURL:    p.EmbeddingBaseURL,
			APIKey:     p.EmbeddingAPIKey,
			Model:      p.EmbeddingModel,
			Dimensions: p.EmbeddingDimensions,
		})
		if err != nil {
			slog.Warn("embedding provider unavailable, knowledge retrieval disabled", "error", err)
		}
	}

	resolver := booking.NewResolver(st, booking.Config{
		BusinessHourStart: p.BusinessHourStart,
		BusinessHourEnd:   p.BusinessHourEnd,
		HorizonDays:       p.SearchHorizonDays,
		MaxAlternatives:   p.MaxAlternatives,
	})

	summarizer := dialogue.NewSummarizer(llmService)
	sessionTTL := time.Duration(p.SessionTTLMins) * time.Minute
	memory := dialogue.NewMemory(st, summarizer, p.MemoryWindow, sessionTTL)
	memory.StartSweeper(ctx, time.Hour)

	var builder *knowledge.Builder
	var retriever *knowledge.Retriever
	if embedder != nil {
		builder = knowledge.NewBuilder(st, llmService, embedder)
		retriever = knowledge.NewRetriever(st, embedder)
	}

	sender := email.NewSender(&email.Config{
		SMTPHost:     p.SMTPHost,
		SMTPPort:     p.SMTPPort,
		SMTPUsername: p.SMTPUsername,
		SMTPPassword: p.SMTPPassword,
		FromEmail:    p.SMTPFrom,
		FromName:     "NeoBook",
	})

	notifiers := dialogue.MultiNotifier{email.NewConfirmationNotifier(sender, time.UTC)}
	if p.WebhookURL != "" {
		notifiers = append(notifiers, webhook.NewNotifier(p.WebhookURL))
	}

	orchestrator := dialogue.NewOrchestrator(
		memory,
		extractor.New(llmService),
		resolver,
		retriever,
		llmService,
		dialogue.WithMetrics(exporter),
		dialogue.WithNotifier(notifiers),
		dialogue.WithWindow(p.MemoryWindow),
	)

	var channelRouter *channels.ChannelRouter
	if p.TelegramBotToken != "" {
		channel, err := telegram.NewChannel(&telegram.Config{
			BotToken:      p.TelegramBotToken,
			WebhookSecret: p.TelegramWebhookSecret,
		})
		if err != nil {
			slog.Warn("telegram channel unavailable", "error", err)
		} else {
			channelRouter = channels.NewChannelRouter(orchestrator)
			channelRouter.Register(channel)
			slog.Info("telegram channel registered")
		}
	}

	return &apiv1.Dependencies{
		Orchestrator:  orchestrator,
		Memory:        memory,
		Booking:       resolver,
		Builder:       builder,
		Retriever:     retriever,
		ChannelRouter: channelRouter,
		Profile:       p,
		Store:         st,
	}, exporter, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28084)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28084, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("neobook")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("NeoBook %s started\n", p.Version)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	}
	if !p.IsAIEnabled() {
		fmt.Println("No LLM API key configured: extraction runs on the rule layer only")
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
