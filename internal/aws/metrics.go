package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Alerter pushes operator-facing counters to CloudWatch. Alarms on these
// metrics are how fulfillment failures reach a human.
type Alerter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewAlerter returns an Alerter writing into namespace.
func NewAlerter(client CloudWatchAPI, namespace string) *Alerter {
	return &Alerter{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Alert records one occurrence of metric. The metric carries no per-order
// dimension so a single alarm covers every order; the order id goes to the logs.
func (a *Alerter) Alert(ctx context.Context, metric string) error {
	_, err := a.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(a.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(metric),
				Timestamp:  sdkaws.Time(a.nowFunc().UTC()),
				Unit:       cwtypes.StandardUnitCount,
				Value:      sdkaws.Float64(1),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", metric, err)
	}
	return nil
}
