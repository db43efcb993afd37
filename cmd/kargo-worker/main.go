package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DenizBir/KargoGate/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("cannot load config: %v", err))
	}

	p, closeFn, err := buildPoller(cfg, defaultWorkerFactories())
	if err != nil {
		panic(err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Gate.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			poller:      p,
			cfg:         cfg,
		})
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker http server", "err", err)
		}
		httpErr <- err
	}()

	if err := p.Run(ctx); err != nil && err != context.Canceled {
		panic(err)
	}
	<-httpErr
}
