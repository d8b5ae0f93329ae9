package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

const (
	KeyCredentialExpired = "credential.expired"
	KeyCanceled          = "request.canceled"
)

// RecordError marks span as failed with err. Failures caused by an expired
// credential or a canceled request are tagged so they can be told apart from
// backend faults.
func RecordError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool(KeyCredentialExpired, inErrors.IsExpiredCredential(err)),
		attribute.Bool(KeyCanceled, errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)),
	)
}
