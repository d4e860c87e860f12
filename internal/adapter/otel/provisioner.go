package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/croftlabs/certbill/internal/domain"
)

const tracerName = "github.com/croftlabs/certbill/internal/adapter/otel"

// TracingProvisioner wraps a domain.Provisioner with OpenTelemetry tracing.
// Every external CA call gets a span with semantic attributes; these are the
// spans that matter most when a provisioning batch goes sideways.
type TracingProvisioner struct {
	next   domain.Provisioner
	tracer trace.Tracer
}

// Compile-time check: TracingProvisioner implements domain.Provisioner.
var _ domain.Provisioner = (*TracingProvisioner)(nil)

// NewTracingProvisioner creates a tracing decorator around the given provisioner.
func NewTracingProvisioner(next domain.Provisioner) *TracingProvisioner {
	return &TracingProvisioner{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingProvisioner) AddDomain(ctx context.Context, accountExternalID, domainName, idempotencyToken string) (domain.ProvisionResult, error) {
	ctx, span := p.tracer.Start(ctx, "Provisioner.AddDomain",
		trace.WithAttributes(
			attribute.String("ca.account_id", accountExternalID),
			attribute.String("ca.domain", domainName),
			attribute.String("ca.idempotency_token", idempotencyToken),
		),
	)
	defer span.End()

	result, err := p.next.AddDomain(ctx, accountExternalID, domainName, idempotencyToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("ca.order_ref", result.OrderRef))
	}
	return result, err
}

func (p *TracingProvisioner) RemoveDomain(ctx context.Context, accountExternalID, domainName string) error {
	ctx, span := p.tracer.Start(ctx, "Provisioner.RemoveDomain",
		trace.WithAttributes(
			attribute.String("ca.account_id", accountExternalID),
			attribute.String("ca.domain", domainName),
		),
	)
	defer span.End()

	err := p.next.RemoveDomain(ctx, accountExternalID, domainName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
