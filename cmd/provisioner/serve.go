package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/config"
	"github.com/Ahmed123sa/whatsapp-auto/phone"
	"github.com/Ahmed123sa/whatsapp-auto/server"
	"github.com/Ahmed123sa/whatsapp-auto/session"
	"github.com/Ahmed123sa/whatsapp-auto/storage"
	"github.com/Ahmed123sa/whatsapp-auto/workflow"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and keep the backend session alive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*cfgFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	level := parseLevel(cfg.LogLevel)
	logger := newLogger("provisioner", level)

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("fail to close storage, err: %s", err)
		}
	}()

	client, err := backend.NewGateway(cfg.Backend.BaseURL, cfg.Backend.EventsURL, cfg.Backend.Timeout.Std(), newLogger("backend", level))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Errorf("fail to close backend client, err: %s", err)
		}
	}()

	machine := session.NewMachine(newLogger("session", level))
	supervisor := session.NewSupervisor(machine, client, cfg.Backend.ReconnectDelay.Std(), newLogger("session", level))

	p := cfg.Provisioning
	engine := workflow.NewEngine(client, machine, store, phone.NewFormatter(p.CountryCode), workflow.Options{
		Owner:             p.Owner,
		Designers:         p.Designers,
		SettleDelay:       p.SettleDelay.Std(),
		PromotionAttempts: p.PromotionAttempts,
		PromotionBackoff:  p.PromotionBackoff.Std(),
		CreateOptions:     &backend.CreateOptions{MemberAddMode: true},
		CreateFallback:    p.CreateFallback,
		WelcomeTemplate:   p.WelcomeTemplate,
	}, newLogger("workflow", level))

	s := server.NewServer(cfg.Port, engine, machine, store, client, p.GroupInfoTTL.Std(), newLogger("http", level))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Run(gctx)
	})
	g.Go(s.StartServer)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return s.StopServer()
	})
	err = g.Wait()

	waitCtx, cancel := context.WithTimeout(context.Background(), followUpDrainTimeout(p, cfg.Backend.Timeout.Std()))
	defer cancel()
	if werr := engine.Wait(waitCtx); werr != nil {
		logger.Warnf("follow-up work still running at exit, err: %s", werr)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// followUpDrainTimeout bounds how long shutdown waits for in-flight follow-up
// work: the settle delay plus every promotion attempt for client and roster.
func followUpDrainTimeout(p config.Provisioning, callTimeout time.Duration) time.Duration {
	perAttempt := p.PromotionBackoff.Std() + callTimeout
	return p.SettleDelay.Std() + 2*time.Duration(p.PromotionAttempts)*perAttempt + 2*callTimeout
}

func newLogger(prefix string, level log.Lvl) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(level)
	l.SetHeader("${time_rfc3339} ${level} ${prefix} ${short_file}:${line}")
	return l
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
