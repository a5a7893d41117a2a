// Package publisher is the implementation of the telemetry publisher component.
// The publisher writes normalized traffic metrics to CloudWatch and preserves
// raw upstream payloads in CloudWatch Logs for later reprocessing.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/traffic-insights/traffic-insights/internal/constants"
	"github.com/traffic-insights/traffic-insights/internal/traffic"
	"github.com/ubuntu/decorate"
)

// MetricsAPI is an interface for the metric ingestion calls used by the publisher.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// LogsAPI is an interface for the log ingestion calls used by the publisher.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// Publisher is an abstraction of the telemetry publisher component.
type Publisher struct {
	metrics MetricsAPI
	logs    LogsAPI

	namespace string
	logGroup  string
	dryRun    bool
}

type options struct {
	namespace string
	logGroup  string
	dryRun    bool
}

// Options represents an optional function to override Publisher default values.
type Options func(*options)

// WithNamespace overrides the metric namespace.
func WithNamespace(namespace string) Options {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithLogGroup overrides the destination log group.
func WithLogGroup(group string) Options {
	return func(o *options) {
		o.logGroup = group
	}
}

// WithDryRun makes the publisher go through the motions without writing to the sinks.
func WithDryRun(dryRun bool) Options {
	return func(o *options) {
		o.dryRun = dryRun
	}
}

// New returns a new Publisher backed by the given sink clients.
func New(metrics MetricsAPI, logs LogsAPI, args ...Options) (Publisher, error) {
	if metrics == nil {
		return Publisher{}, fmt.Errorf("metrics client cannot be nil")
	}
	if logs == nil {
		return Publisher{}, fmt.Errorf("logs client cannot be nil")
	}

	opts := options{
		namespace: constants.DefaultMetricNamespace,
		logGroup:  constants.DefaultLogGroup,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Publisher{
		metrics: metrics,
		logs:    logs,

		namespace: opts.namespace,
		logGroup:  opts.logGroup,
		dryRun:    opts.dryRun,
	}, nil
}

// PublishRaw writes the unmodified upstream payload for one (repository, kind)
// pair as a single log record, creating the destination stream if needed.
//
// The log stream is named repository/kind. Only a bounded window of the series
// becomes metrics, so this record is what keeps the full payload recoverable.
func (p Publisher) PublishRaw(ctx context.Context, repository string, kind traffic.Kind, payload []byte, now time.Time) (err error) {
	defer decorate.OnError(&err, "failed to publish raw %s payload for %s", kind, repository)

	stream := fmt.Sprintf("%s/%s", repository, kind)
	slog.Debug("Publishing raw traffic payload", "group", p.logGroup, "stream", stream)

	if p.dryRun {
		slog.Info("Dry run, not writing raw payload", "stream", stream)
		return nil
	}

	if err := p.ensureLogStream(ctx, stream); err != nil {
		return err
	}

	_, err = p.logs.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(p.logGroup),
		LogStreamName: aws.String(stream),
		LogEvents: []cwltypes.InputLogEvent{
			{
				Timestamp: aws.Int64(now.UnixMilli()),
				Message:   aws.String(string(payload)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put log events: %v", err)
	}

	return nil
}

// PublishMetrics submits normalized metrics as one batched call.
// Nothing is sent when there are no metrics to publish.
func (p Publisher) PublishMetrics(ctx context.Context, metrics []traffic.Metric) (err error) {
	if len(metrics) == 0 {
		slog.Debug("No metrics to publish, skipping metric write")
		return nil
	}
	defer decorate.OnError(&err, "failed to publish %d metrics", len(metrics))

	data := make([]cwtypes.MetricDatum, 0, len(metrics))
	for _, m := range metrics {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(string(m.Kind)),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("type"), Value: aws.String(string(m.Dimension))},
				{Name: aws.String("repository"), Value: aws.String(m.Repository)},
			},
			Value:     aws.Float64(float64(m.Value)),
			Timestamp: aws.Time(m.Timestamp),
			Unit:      cwtypes.StandardUnitCount,
		})
	}

	if p.dryRun {
		slog.Info("Dry run, not writing metrics", "count", len(data))
		return nil
	}

	if _, err := p.metrics.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	}); err != nil {
		return err
	}
	slog.Info("Published traffic metrics", "namespace", p.namespace, "count", len(data))

	return nil
}

// ensureLogStream creates the log group and stream if they do not already exist.
func (p Publisher) ensureLogStream(ctx context.Context, stream string) error {
	_, err := p.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(p.logGroup)})
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create log group: %v", err)
	}

	_, err = p.logs.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(p.logGroup),
		LogStreamName: aws.String(stream),
	})
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create log stream: %v", err)
	}

	return nil
}

func alreadyExists(err error) bool {
	var exists *cwltypes.ResourceAlreadyExistsException
	return errors.As(err, &exists)
}
