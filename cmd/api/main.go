package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/app"
	seeders "github.com/jamesdouglasskirk96/Nerava-sub005/internal/seeder"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/version"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	runSeeders := flag.Bool("seed", false, "seed reference data before starting")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	application, err := app.NewApplication(logger)
	if err != nil {
		return err
	}
	defer application.DB.Close()

	if *runSeeders {
		seeders.New(application.DB).Run()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		DB:          application.DB,
		Ctx:         ctx,
		Helper:      application.Helper(),
		Mailer:      application.Mailer,
		Messenger:   application.Messenger,
		Crm:         application.Crm,
		Config:      &application.Config,
	})

	go workers.NotifyMerchantWorker()
	go workers.BillingWorker()
	go workers.OutboxDispatcher()
	go workers.ExpireSessionsWorker()

	return application.ServeHTTP()
}
