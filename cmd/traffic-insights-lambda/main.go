// Package main is the Lambda entry point for the scheduled traffic tracking job.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/traffic-insights/traffic-insights/internal/github"
	"github.com/traffic-insights/traffic-insights/internal/publisher"
	"github.com/traffic-insights/traffic-insights/internal/registry"
	"github.com/traffic-insights/traffic-insights/internal/tracker"
)

// Response is the job result reported back to the invoker.
//
// The job completes with status 200 even when some repositories failed;
// only precondition and unexpected errors fail the whole invocation.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	lambda.Start(handler)
}

func handler(ctx context.Context) (Response, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("failed to load AWS configuration: %v", err)), nil
	}

	reg, err := registry.New(ssm.NewFromConfig(cfg), secretsmanager.NewFromConfig(cfg))
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err), nil
	}

	pub, err := publisher.New(cloudwatch.NewFromConfig(cfg), cloudwatchlogs.NewFromConfig(cfg))
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err), nil
	}

	tr, err := tracker.New(reg, github.New(), pub)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, err), nil
	}

	summary, err := tr.Run(ctx)
	if err != nil {
		slog.Error("Traffic tracking run failed", "error", err)
		if tracker.IsPreconditionError(err) {
			return errorResponse(http.StatusBadRequest, err), nil
		}
		return errorResponse(http.StatusInternalServerError, err), nil
	}

	body, err := json.Marshal(map[string]any{
		"message": "GitHub traffic data processing completed",
		"summary": summary,
	})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("failed to marshal run summary: %v", err)), nil
	}

	return Response{StatusCode: http.StatusOK, Body: string(body)}, nil
}

func errorResponse(code int, err error) Response {
	body, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		body = []byte(`{"error": "internal error"}`)
	}
	return Response{StatusCode: code, Body: string(body)}
}
