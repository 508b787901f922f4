package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-eid-verify/internal/config"
	"github.com/go-eid-verify/internal/domain"
)

// SNS rejects subjects longer than this.
const maxSubjectLen = 100

// PublishAPI is the part of the SNS client the publishers need.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

// Alerter publishes operator alerts to a topic.
type Alerter struct {
	client   PublishAPI
	topicARN string
}

func NewAlerter(client PublishAPI, topicARN string) *Alerter {
	return &Alerter{client: client, topicARN: topicARN}
}

func (a *Alerter) Alert(ctx context.Context, subject, message string) error {
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"severity": {DataType: aws.String("String"), StringValue: aws.String("high")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish alert: %w", err)
	}
	return nil
}

// AuditPublisher forwards audit events as JSON to a topic for downstream consumers.
type AuditPublisher struct {
	client   PublishAPI
	topicARN string
}

func NewAuditPublisher(client PublishAPI, topicARN string) *AuditPublisher {
	return &AuditPublisher{client: client, topicARN: topicARN}
}

func (p *AuditPublisher) Record(ctx context.Context, e *domain.AuditEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action":            {DataType: aws.String("String"), StringValue: aws.String(e.Action)},
			"verification_type": {DataType: aws.String("String"), StringValue: aws.String(e.VerificationType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish audit event: %w", err)
	}
	return nil
}
