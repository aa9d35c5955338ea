package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardine-ai/go-device-credentials/internal/cli"
	"github.com/sardine-ai/go-device-credentials/server"
	"github.com/sardine-ai/go-device-credentials/source"
	"github.com/sirupsen/logrus"
)

var (
	addr     = flag.String("addr", ":8080", "listen address")
	authKey  = flag.String("auth_key", "", "auth key for the server, CREDSERVER_AUTH_KEY when empty")
	interval = flag.Duration("refresh", time.Minute, "repository refresh interval")
	watch    = flag.Bool("watch", false, "reload fs repositories as soon as the file changes")
)

func main() {
	repoFlags := cli.NewRepositoryFlags(flag.CommandLine, "credentials")
	flag.Parse()
	repoFlags.SetupLogging()

	repository, err := repoFlags.Repository()
	if err != nil {
		logrus.WithError(err).Fatal("error creating repository")
	}

	key := *authKey
	if key == "" {
		key = os.Getenv("CREDSERVER_AUTH_KEY")
	}
	if key == "" {
		logrus.Warn("no auth key configured, credentials are served to anyone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(ctx, []source.Repository{repository}, *interval)
	srv.AuthKey = key

	if fileRepo, ok := repository.(*source.FileRepository); ok && *watch {
		go func() {
			if err := fileRepo.Watch(ctx, nil); err != nil {
				logrus.WithError(err).Error("error watching credentials file")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(*addr) }()

	select {
	case err := <-errCh:
		srv.Stop()
		if err != nil {
			logrus.WithError(err).Fatal("error starting server")
		}
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			logrus.WithError(err).Error("error shutting down server")
		}
	}
}
