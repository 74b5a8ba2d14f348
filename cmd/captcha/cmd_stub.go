package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"captchaclient/internal/logging"
	"captchaclient/internal/stubserver"
)

var (
	stubAddr string
	stubTTL  time.Duration
	stubSeed int64
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Serve a local captcha backend",
	Long: `Serves /api/captcha/generate and /api/captcha/verify with drawn fixture
images and an in-memory store. Point the client at it with --server.`,
	Example: `  captcha stub --addr :8083
  captcha --server http://localhost:8083`,
	RunE: runStub,
}

func runStub(cmd *cobra.Command, args []string) error {
	addr := cfg.Stub.Addr
	if stubAddr != "" {
		addr = stubAddr
	}
	ttl := cfg.GetStubTTL()
	if stubTTL > 0 {
		ttl = stubTTL
	}

	srv, err := stubserver.New(stubserver.Options{TTL: ttl, Seed: stubSeed})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(addr)
	})
	g.Go(func() error {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := srv.Store().Sweep(); n > 0 {
					logging.Get(logging.CategoryStub).Debug("swept %d expired challenges", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logging.Get(logging.CategoryStub).Info("shutting down stub backend")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
