package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"luma_assistant/internal/config"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/repository"
	"luma_assistant/internal/usecases"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:          "luma",
		Short:        "Conversational assistant for a small shop (WhatsApp + operator side channel)",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load instead of .env/.env.local")
	serve := newServeCmd(&envFile)
	// a bare "luma" serves
	cmd.RunE = serve.RunE
	cmd.AddCommand(serve, newClassifyCmd(&envFile), newRenderCmd(&envFile), newVersionCmd())
	return cmd
}

func loadConfig(envFile string) (*config.Configuration, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook listener, scheduler and channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			logger := logging.ConsoleLogger(cfg.LogrusLogLevel())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

// Run starts every long-running component and returns when the first one
// fails or ctx is cancelled.
func (a *app) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
	}
	g.Go(func() error {
		a.logger.WithField("addr", srv.Addr).Info("luma listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if a.cfg.Scheduler.Enabled {
		g.Go(func() error { return a.poller.Run(ctx) })
	}
	if a.telegram != nil {
		g.Go(func() error { return a.telegram.Run(ctx) })
	}
	if a.whatsapp != nil {
		g.Go(func() error { return a.whatsapp.Run(ctx) })
	}

	a.limiter.StartCleanup(5 * time.Minute)
	defer a.limiter.Stop()

	return g.Wait()
}

func newClassifyCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Print the language, intent and escalation decision for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			msg := strings.Join(args, " ")
			detector := usecases.NewDetector(usecases.DetectorConfig{
				DefaultLanguage: cfg.Business.DefaultLanguage,
				HoursStart:      cfg.Business.HoursStart,
				HoursEnd:        cfg.Business.HoursEnd,
				Location:        cfg.Location(),
			})
			policy := usecases.NewEscalationPolicy(cfg.Conversation.EscalationThreshold)

			analysis := detector.Detect(msg)
			out := struct {
				Analysis   any    `json:"analysis"`
				Category   string `json:"template_category"`
				Escalation any    `json:"escalation"`
			}{
				Analysis:   analysis,
				Category:   usecases.TemplateCategory(analysis, true),
				Escalation: policy.ShouldEscalate(msg, 0),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newRenderCmd(envFile *string) *cobra.Command {
	var lang string
	var slots []string
	cmd := &cobra.Command{
		Use:   "render <category>",
		Short: "Render a reply template, e.g. render --lang en prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			catalog, err := repository.LoadTemplateCatalog(cfg.Conversation.TemplatesPath, repository.NewSeededRand(cfg.Conversation.RandomSeed))
			if err != nil {
				return err
			}
			if lang == "" {
				lang = catalog.DefaultLanguage()
			}
			values := map[string]string{
				"owner":   cfg.Business.Owner,
				"hours":   cfg.Business.ShopHours,
				"website": cfg.Business.Website,
			}
			for _, s := range slots {
				k, v, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("invalid slot %q, want key=value", s)
				}
				values[k] = v
			}
			text, err := catalog.Render(lang, args[0], values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "template language (default: catalog default)")
	cmd.Flags().StringArrayVar(&slots, "slot", nil, "slot value as key=value, repeatable")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "luma "+version)
		},
	}
}
