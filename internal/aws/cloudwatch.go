package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

// CloudWatchRecorder publishes domain counters as CloudWatch metrics. The
// worker runs in Lambda where nothing scrapes a Prometheus endpoint.
type CloudWatchRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewCloudWatchRecorder(client CloudWatchAPI, namespace string) *CloudWatchRecorder {
	return &CloudWatchRecorder{client: client, namespace: namespace, nowFunc: time.Now}
}

func (r *CloudWatchRecorder) OrderPlaced(ctx context.Context, method string) {
	r.put(ctx, "OrdersPlaced", "PaymentMethod", method)
}

func (r *CloudWatchRecorder) PaymentVerified(ctx context.Context, outcome string) {
	r.put(ctx, "PaymentVerifications", "Outcome", outcome)
}

func (r *CloudWatchRecorder) StatusChanged(ctx context.Context, status string) {
	r.put(ctx, "StatusTransitions", "Status", status)
}

// put is best effort: a metrics outage must not fail order processing.
func (r *CloudWatchRecorder) put(ctx context.Context, name, dimension, value string) {
	now := r.nowFunc()
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &r.namespace,
		MetricData: []cwtypes.MetricDatum{{
			MetricName: awsString(name),
			Dimensions: []cwtypes.Dimension{{Name: awsString(dimension), Value: awsString(value)}},
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(1),
		}},
	})
	if err != nil {
		logging.WithCtx(ctx).Warn("put metric data failed", "metric", name, "error", err)
	}
}

func float64Ptr(v float64) *float64 { return &v }
