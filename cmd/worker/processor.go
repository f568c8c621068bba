package main

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/payments"
)

// OutcomeReporter is satisfied by *fulfillment.Reconciler.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, ev payments.Event) (fulfillment.Ack, error)
}

// Processor applies queued payment events to orders.
type Processor struct {
	reconciler OutcomeReporter
	logger     *zap.Logger
}

// NewProcessor creates a worker processor around the reconciler.
func NewProcessor(reconciler OutcomeReporter, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{reconciler: reconciler, logger: logger}
}

// Handle processes an SQS batch. Only messages that failed for a transient
// reason are reported back, so SQS redelivers those and nothing else.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	logger := p.logger.With(zap.String("message_id", rec.MessageId))

	ev, err := payments.Decode(rec.Body)
	if err != nil {
		// redelivery cannot fix a malformed body
		logger.Error("dropping malformed payment event", zap.Error(err), zap.String("body", rec.Body))
		return nil
	}
	logger = logger.With(
		zap.Int64("order_id", ev.OrderID),
		zap.String("outcome", string(ev.Outcome)),
		zap.String("correlation_id", ev.CorrelationID),
	)

	ack, err := p.reconciler.ReportOutcome(ctx, ev)
	if err != nil {
		var notFound *apperr.NotFoundError
		var illegal *apperr.IllegalStateError
		if errors.As(err, &notFound) || errors.As(err, &illegal) {
			logger.Warn("payment event rejected", zap.Error(err))
			return nil
		}
		logger.Error("payment event failed, will retry", zap.Error(err))
		return err
	}

	switch {
	case ack.FulfillmentFailed:
		logger.Error("payment settled but fulfillment failed", zap.String("reason", ack.Reason))
	case !ack.Applied:
		logger.Info("payment event ignored", zap.String("reason", ack.Reason))
	default:
		logger.Info("payment event applied")
	}
	return nil
}
