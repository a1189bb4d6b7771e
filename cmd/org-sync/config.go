package main

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/pkg/composables"
	"github.com/iota-uz/orgsync/pkg/configuration"
)

// useConfig is swapped in tests so commands never read .env files or open log files.
var useConfig = func() *configuration.Configuration {
	conf := configuration.Use()
	unloadConfig = conf.Unload
	return conf
}

var unloadConfig = func() {}

func cliLogger(conf *configuration.Configuration) *logrus.Entry {
	if logger := conf.Logger(); logger != nil {
		return logrus.NewEntry(logger)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func withLogger(ctx context.Context, conf *configuration.Configuration) context.Context {
	return composables.WithLogger(ctx, cliLogger(conf))
}
