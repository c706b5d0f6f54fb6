package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spendtalk-backend/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			s := server.NewServer(a.cfg, server.Deps{
				Engine:      a.engine,
				Expenses:    a.expenses,
				Transcriber: a.transcriber,
			})
			addr := ":" + a.cfg.Port
			srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "spendtalk listening on %s (model %s/%s, store %s)\n", addr, a.cfg.LLMProvider, a.cfg.LLMModel, a.cfg.ExpenseDriver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Println("server stopped")
			return nil
		}),
	}
}
