package config

import (
	"context"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetOutput(os.Stdout)

	// Env: LOG_LEVEL (debug/info/warn/error). Default: info.
	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logg.SetLevel(parsed)
	} else {
		logg.SetLevel(logrus.InfoLevel)
	}
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}

func LogWarn(logger *logrus.Logger, moduleName string, funcName string, context string, err error) {
	logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}).Warn(err.Error())
}

// withCorrelationId copies the request correlation id into the field set so
// every log line of one request can be grepped together.
func withCorrelationId(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		fields["correlation_id"] = cid
	}
	return fields
}

func LogErrorCtx(ctx context.Context, logger *logrus.Logger, moduleName string, funcName string, opContext string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  opContext,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(withCorrelationId(ctx, fields)).Error(err.Error())
}

func LogWarnCtx(ctx context.Context, logger *logrus.Logger, moduleName string, funcName string, opContext string, err error) {
	logger.WithFields(withCorrelationId(ctx, logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  opContext,
	})).Warn(err.Error())
}
