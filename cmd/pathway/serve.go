package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nviro-labs/pathway/agents/supervisor"
	"github.com/nviro-labs/pathway/api"
	"github.com/nviro-labs/pathway/chatmodel"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP question answering service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := newService(ctx, cmd)
		if err != nil {
			return err
		}
		defer svc.close(context.Background())

		srv := &http.Server{
			Addr:              svc.cfg.Server.ListenAddr,
			Handler:           api.NewServer(&serviceRunner{svc: svc}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("listening on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return err
		case sig := <-shutdown:
			fmt.Printf("shutting down, signal: %v\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return err
			}
		}
		return nil
	},
}

// serviceRunner adapts the wired service to the API. Each request gets
// its own chat ID so history entries do not interleave.
type serviceRunner struct {
	svc *service
}

func (r *serviceRunner) Run(ctx context.Context, question string) *supervisor.Result {
	return r.RunWithEvents(ctx, question, nil)
}

func (r *serviceRunner) RunWithEvents(ctx context.Context, question string, fn supervisor.EventFunc) *supervisor.Result {
	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(uuid.NewString(), nil))
	res := r.svc.supervisor.RunWithEvents(ctx, question, fn)
	r.svc.record(ctx, question, res.Answer)
	return res
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
