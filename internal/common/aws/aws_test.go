package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Mailer Tests
// ==========================

func TestMailer_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	mailer := NewMailerWithService(&MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}, "noreply@nylta.com")

	id, err := mailer.Send(context.Background(), "firm@example.com", "Order received", "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.NotNil(t, captured)
	assert.Equal(t, []string{"firm@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "noreply@nylta.com", aws.ToString(captured.Source))
	assert.Equal(t, "Order received", aws.ToString(captured.Message.Subject.Data))
	assert.Equal(t, "Thanks", aws.ToString(captured.Message.Body.Text.Data))
}

func TestMailer_Send_Errors(t *testing.T) {
	mailer := NewMailerWithService(&MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}, "noreply@nylta.com")

	_, err := mailer.Send(context.Background(), "", "s", "b")
	assert.ErrorIs(t, err, ErrMissingRecipient)

	_, err = mailer.Send(context.Background(), "firm@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

// ==========================
// Alerter Tests
// ==========================

func TestAlerter_Publish(t *testing.T) {
	var captured *sns.PublishInput
	alerter := NewAlerterWithService(&MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: aws.String("alert-1")}, nil
		},
	}, "arn:aws:sns:us-east-1:123:alerts")

	id, err := alerter.Publish(context.Background(), "Batch failed", "all 3 clients failed")
	require.NoError(t, err)
	assert.Equal(t, "alert-1", id)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:alerts", aws.ToString(captured.TopicArn))
	assert.Equal(t, "Batch failed", aws.ToString(captured.Subject))
}

func TestAlerter_Publish_MissingTopic(t *testing.T) {
	alerter := NewAlerterWithService(&MockSNSService{}, "")
	_, err := alerter.Publish(context.Background(), "s", "m")
	assert.ErrorIs(t, err, ErrMissingTopic)
}
