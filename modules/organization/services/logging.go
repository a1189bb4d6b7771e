package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := composables.UseLogger(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}
