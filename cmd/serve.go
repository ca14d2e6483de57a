package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/forcetrace/forcetrace/internal/api"
	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/injector"
	"github.com/forcetrace/forcetrace/internal/listener"
	"github.com/forcetrace/forcetrace/internal/scanner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and DNS callback listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := database.NewStore(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		registry := correlation.NewRegistry(store)
		scorer := correlation.NewScorer(cfg.Scoring)
		dedup := correlation.NewDedupGate(cfg.Redis, store, log)
		defer dedup.Close()
		engine := correlation.NewEngine(store, registry, scorer, dedup, log)

		sc := scanner.New(store, registry, cfg.Scanner, log)
		proc := injector.NewProcessor(store, cfg.Injector, log)

		server := api.NewServer(store, engine, sc, proc, log)
		router := server.Router(cfg.Security, log)

		httpServer := &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			log.Infow("HTTP server starting", "addr", cfg.Server.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})

		if !viper.GetBool("dns.disabled") {
			dns := listener.NewDNSListener(cfg.DNS, engine, log)
			g.Go(func() error {
				return dns.Serve(gctx)
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		color.Cyan("Forcetrace is listening\n")
		color.White("  API:          http://localhost%s/api/v1\n", cfg.Server.ListenAddr)
		color.White("  Callback URL: %s\n", cfg.Injector.CallbackURL)
		color.White("  DNS domain:   %s\n", cfg.DNS.CallbackDomain)

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("listen"))
	serveCmd.Flags().String("dns-listen", ":5353", "DNS listen address")
	viper.BindPFlag("dns.listen_addr", serveCmd.Flags().Lookup("dns-listen"))
	serveCmd.Flags().Bool("no-dns", false, "disable the DNS callback listener")
	viper.BindPFlag("dns.disabled", serveCmd.Flags().Lookup("no-dns"))

	rootCmd.AddCommand(serveCmd)
}
