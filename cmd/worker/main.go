package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/app"
	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/server"
	temporalmod "github.com/codesage/sage/internal/temporal"
)

func main() {
	configPath := flag.String("config", config.DefaultFile, "Config file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, *configPath)
	if err != nil {
		log.Fatalf("sage: %v", err)
	}
	defer a.Close(context.Background())

	temporalmod.SetDependencies(&temporalmod.Dependencies{Refresher: a.Assistant})

	tc := a.Config.Temporal
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  tc.Host,
		Namespace: tc.Namespace,
	})
	if err != nil {
		a.Logger.Fatal("temporal client", zap.Error(err))
	}
	defer c.Close()

	health := server.NewHealthServer(app.Version)
	health.RegisterCheck("database", server.Check(a.CheckDatabase, true))
	health.RegisterCheck("temporal", server.Check(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}, true))
	if tc.HealthAddr != "" {
		go func() {
			if err := health.Serve(ctx, tc.HealthAddr); err != nil {
				a.Logger.Error("health server", zap.Error(err))
			}
		}()
	}

	w, err := temporalmod.StartWorker(c, tc.TaskQueue)
	if err != nil {
		a.Logger.Fatal("worker", zap.Error(err))
	}
	health.SetReady(true)

	fmt.Printf("Worker started on task queue: %s\n", tc.TaskQueue)
	<-ctx.Done()

	health.SetReady(false)
	w.Stop()
	fmt.Println("Worker stopped")
}
