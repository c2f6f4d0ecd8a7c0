package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mokykla/pointsapi/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = usage
	flag.Parse()

	cfg := app.AppConfig{ConfigPath: *configPath}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "serve":
		if errRun := app.RunServer(ctx, cfg); errRun != nil {
			log.Fatalf("server failed: %v", errRun)
		}
	case "migrate":
		if errMigrate := app.Migrate(ctx, cfg); errMigrate != nil {
			log.Fatalf("migrate failed: %v", errMigrate)
		}
		log.Info("migrations applied")
	case "create-admin":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "usage: server create-admin <username> <password>")
			os.Exit(2)
		}
		if errCreate := app.CreateAdmin(ctx, cfg, flag.Arg(1), flag.Arg(2)); errCreate != nil {
			log.Fatalf("create admin failed: %v", errCreate)
		}
		log.Info("admin account created")
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: server [flags] <command>

commands:
  serve         start the API server (default)
  migrate       apply database migrations and exit
  create-admin  create an administrator account

flags:
`)
	flag.PrintDefaults()
}
