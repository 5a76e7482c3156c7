package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var ErrMissingTopic = errors.New("sns topic arn is required")

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Alerter publishes operational alerts to a single topic.
type Alerter struct {
	client   SNSService
	topicARN string
}

func NewAlerter(cfg aws.Config, topicARN string) *Alerter {
	return NewAlerterWithService(sns.NewFromConfig(cfg), topicARN)
}

func NewAlerterWithService(client SNSService, topicARN string) *Alerter {
	return &Alerter{client: client, topicARN: topicARN}
}

func (a *Alerter) Publish(ctx context.Context, subject, message string) (string, error) {
	if a.topicARN == "" {
		return "", ErrMissingTopic
	}

	out, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
