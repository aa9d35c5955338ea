package main

import (
	"flag"
	"os"

	"github.com/sardine-ai/go-device-credentials/client"
	"github.com/sardine-ai/go-device-credentials/internal/cli"
	"github.com/sardine-ai/go-device-credentials/render"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	out               = flag.String("out", "config.h", "header file to write")
	guard             = flag.String("guard", "CONFIG_H", "include guard macro")
	allowPlaceholders = flag.Bool("allow_placeholders", false, "render even if values are still placeholders")
	fromHeader        = flag.String("from_header", "", "print an existing header as YAML instead of rendering")
)

func main() {
	repoFlags := cli.NewRepositoryFlags(flag.CommandLine, "credentials")
	flag.Parse()
	repoFlags.SetupLogging()

	if *fromHeader != "" {
		creds, err := render.ReadHeaderFile(*fromHeader)
		if err != nil {
			logrus.WithError(err).Fatal("error reading header")
		}
		if err := yaml.NewEncoder(os.Stdout).Encode(creds.Map()); err != nil {
			logrus.WithError(err).Fatal("error writing yaml")
		}
		return
	}

	repository, err := repoFlags.Repository()
	if err != nil {
		logrus.WithError(err).Fatal("error creating repository")
	}
	creds, err := client.Load(repository)
	if err != nil {
		logrus.WithError(err).Fatal("error loading credentials")
	}

	err = render.WriteHeaderFile(*out, creds, render.HeaderOptions{
		Guard:             *guard,
		AllowPlaceholders: *allowPlaceholders,
	})
	if err != nil {
		logrus.WithError(err).Fatal("error writing header")
	}
	logrus.WithFields(logrus.Fields{
		"out":          *out,
		"repository":   repository.GetName(),
		"placeholders": creds.Placeholders(),
	}).Info("header written")
}
