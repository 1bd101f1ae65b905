package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/leadyard/internal/api"
	"github.com/zulandar/leadyard/internal/auth"
	"github.com/zulandar/leadyard/internal/background"
	"github.com/zulandar/leadyard/internal/config"
	"github.com/zulandar/leadyard/internal/db"
	"github.com/zulandar/leadyard/internal/matching"
	"github.com/zulandar/leadyard/internal/metrics"
	"github.com/zulandar/leadyard/internal/notify"
	"github.com/zulandar/leadyard/internal/notify/discord"
	"github.com/zulandar/leadyard/internal/notify/slack"
	"github.com/zulandar/leadyard/internal/payment"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lead API server",
		Long: `Starts the HTTP API: lead locking, purchasing, listings, project
submission and (in live payment mode) Stripe checkout and webhooks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Leadyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&debug, "debug", false, "log SQL statements")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, debug bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath, debug)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	m := metrics.New("leadyard")
	runner := background.New(ctx, background.DefaultTimeout)
	runner.OnFailure(m.RecordBackgroundFailure)
	defer runner.Wait()

	notifier, err := buildNotifier(cfg.Notify, out)
	if err != nil {
		return err
	}

	opts := api.StartOpts{
		DB:           gormDB,
		Port:         cfg.Server.Port,
		Out:          out,
		Auth:         auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		MockPayments: cfg.MockPayments(),
		Trigger: &matching.Trigger{
			DB:       gormDB,
			Scorer:   matching.StoreScorer{DB: gormDB},
			Runner:   runner,
			Notifier: notifier,
			Limit:    cfg.Matching.MaxCandidates,
		},
		Metrics:     m,
		MetricsPath: cfg.Server.MetricsPath,
		Notifier:    notifier,
		Runner:      runner,
	}

	if cfg.MockPayments() {
		fmt.Fprintln(out, "Payments: mock mode (direct purchase enabled)")
	} else {
		if err := wireLivePayments(ctx, cfg, &opts, out); err != nil {
			return err
		}
	}

	return api.Start(ctx, opts)
}

// wireLivePayments sets up the checkout gateway, the webhook finalizer and
// the abandoned-checkout sweeper.
func wireLivePayments(ctx context.Context, cfg *config.Config, opts *api.StartOpts, out io.Writer) error {
	gw, err := payment.NewGateway(opts.DB, payment.GatewayOpts{
		SecretKey:  cfg.Payments.StripeSecretKey,
		PriceCents: cfg.Payments.LeadPriceCents,
		Currency:   cfg.Payments.Currency,
		SuccessURL: cfg.Payments.SuccessURL,
		CancelURL:  cfg.Payments.CancelURL,
	})
	if err != nil {
		return err
	}
	opts.Gateway = gw
	opts.Finalizer = &payment.Finalizer{
		DB:            opts.DB,
		WebhookSecret: cfg.Payments.WebhookSecret,
		AllowUnsigned: cfg.Payments.AllowUnsignedWebhooks && !cfg.Production(),
		Metrics:       opts.Metrics,
		Notifier:      opts.Notifier,
		Runner:        opts.Runner,
	}
	if opts.Finalizer.WebhookSecret == "" {
		fmt.Fprintln(out, "WARNING: webhook signatures are not verified (development only)")
	}

	sweeper := &payment.Sweeper{
		DB:       opts.DB,
		TTL:      cfg.Payments.CheckoutTTL,
		Metrics:  opts.Metrics,
		Notifier: opts.Notifier,
	}
	sched, err := sweeper.Start(ctx, cfg.Payments.ExpirySchedule)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	next := payment.NextRun(cfg.Payments.ExpirySchedule, time.Now()).Round(time.Second)
	fmt.Fprintf(out, "Payments: live mode, abandoned checkouts expire after %s (next sweep in %s)\n",
		cfg.Payments.CheckoutTTL, next)
	return nil
}

// buildNotifier returns the configured operator channels, or nil when none
// is enabled.
func buildNotifier(cfg config.NotifyConfig, out io.Writer) (notify.Notifier, error) {
	var channels notify.Multi
	if cfg.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		channels = append(channels, n)
		fmt.Fprintf(out, "Notifications: Slack channel %s\n", cfg.Slack.ChannelID)
	}
	if cfg.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		channels = append(channels, n)
		fmt.Fprintf(out, "Notifications: Discord channel %s\n", cfg.Discord.ChannelID)
	}
	if len(channels) == 0 {
		return nil, nil
	}
	return channels, nil
}
