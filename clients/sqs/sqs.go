package sqs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/warehouse/lib/awslib"
	"github.com/artie-labs/warehouse/lib/config"
	"github.com/artie-labs/warehouse/lib/db"
	"github.com/artie-labs/warehouse/lib/pipeline"
	"github.com/artie-labs/warehouse/lib/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notifier publishes the result of every pipeline run to a queue.
type Notifier struct {
	queueURL string
	client   sqsAPI
	retryCfg retry.RetryConfig
}

func NewNotifier(ctx context.Context, cfg config.SQSSettings) (*Notifier, error) {
	awsCfg, err := awslib.LoadConfig(ctx, awslib.ConfigArgs{Region: cfg.Region, RoleARN: cfg.RoleARN})
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config for sqs: %w", err)
	}

	return newNotifier(cfg.QueueURL, sqs.NewFromConfig(awsCfg)), nil
}

func newNotifier(queueURL string, client sqsAPI) *Notifier {
	return &Notifier{
		queueURL: queueURL,
		client:   client,
		retryCfg: retry.NewRetryConfig(retry.NewRetryConfigArgs{
			JitterBaseMs:   500,
			JitterMaxMs:    5_000,
			MaxAttempts:    3,
			IsRetryableErr: IsRetryableError,
		}),
	}
}

func (n *Notifier) Notify(ctx context.Context, result pipeline.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"state": {DataType: aws.String("String"), StringValue: aws.String(string(result.State))},
		},
	}

	out, err := retry.WithRetries(ctx, n.retryCfg, func(_ int, _ error) (*sqs.SendMessageOutput, error) {
		return n.client.SendMessage(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %q: %w", n.queueURL, err)
	}

	slog.Debug("Published run notification", slog.String("runID", result.RunID), slog.String("messageID", aws.ToString(out.MessageId)))
	return nil
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if db.IsRetryableError(err) {
		return true
	}

	var requestThrottled *types.RequestThrottled
	if errors.As(err, &requestThrottled) {
		return true
	}

	var overLimit *types.OverLimit
	if errors.As(err, &overLimit) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ServiceUnavailable", "InternalError", "InternalServiceError":
			return true
		}

		if apiErr.ErrorFault() == smithy.FaultServer {
			return true
		}
	}

	return false
}
