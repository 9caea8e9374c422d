package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"sealed_socket/internal/config"
	"sealed_socket/internal/service/app"
	"sealed_socket/internal/service/client"
	"sealed_socket/internal/utils/log"
)

func main() {
	configPath := pflag.StringP("config", "c", "client.yaml", "path to the client configuration")
	id := pflag.String("id", "", "identity to connect as; empty lets the server assign one")
	extra := pflag.String("extra", "", "extra string sent with the hello")
	timeout := pflag.Duration("timeout", 5*time.Second, "how long to wait for delivery acks")
	logFile := pflag.String("log-file", "client.log", "log destination, kept off the terminal UI")
	pflag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Development, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	c, err := client.New(*cfg)
	if err != nil {
		log.Fatal("init client failed", zap.Error(err))
	}
	c.SetExtra(*extra)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat := app.NewApp(c, *timeout)
	go func() {
		<-ctx.Done()
		chat.Stop()
	}()

	if err := chat.Run(ctx, *id); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Error("client stopped", zap.Error(err))
		os.Exit(1)
	}
}
