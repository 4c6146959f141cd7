package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/meetlink/internal/sendwebhook"
	"github.com/okian/meetlink/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	fs := pflag.NewFlagSet("send-webhook", pflag.ContinueOnError)
	config := sendwebhook.BindFlags(fs)
	fs.Usage = func() {
		os.Stderr.WriteString(sendwebhook.Usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	stats, err := sendwebhook.Run(ctx, config)
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
	if stats.Rejected > 0 || stats.Failed > 0 {
		os.Exit(1)
	}
}
