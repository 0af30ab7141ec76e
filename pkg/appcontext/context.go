package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	jobNameKeyId contextId = iota
	tableKeyId
	cadenceKeyId
	requestIdKeyId
)

func WithJobName(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobNameKeyId, job)
}

func WithTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, tableKeyId, table)
}

func WithCadence(ctx context.Context, cadence string) context.Context {
	return context.WithValue(ctx, cadenceKeyId, cadence)
}

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxJobName, ok := ctx.Value(jobNameKeyId).(string); ok && ctxJobName != "" {
		result = result.WithField("job", ctxJobName)
	}

	if ctxTable, ok := ctx.Value(tableKeyId).(string); ok && ctxTable != "" {
		result = result.WithField("table", ctxTable)
	}

	if ctxCadence, ok := ctx.Value(cadenceKeyId).(string); ok && ctxCadence != "" {
		result = result.WithField("cadence", ctxCadence)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
