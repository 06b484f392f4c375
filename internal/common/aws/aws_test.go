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

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

type mockSNS struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-456")}, nil
}

func TestSendEmail(t *testing.T) {
	svc := &mockSES{}
	id, err := SendEmail(context.Background(), svc, Email{
		From:    "alerts@clinic.example",
		To:      []string{"lead@clinic.example"},
		Subject: "Queue backlog",
		Body:    "Hot queue has 12 leads",
	})

	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	assert.Equal(t, []string{"lead@clinic.example"}, svc.input.Destination.ToAddresses)
	assert.Equal(t, "alerts@clinic.example", aws.ToString(svc.input.Source))
	assert.Equal(t, "Queue backlog", aws.ToString(svc.input.Message.Subject.Data))
}

func TestSendEmail_NoRecipients(t *testing.T) {
	svc := &mockSES{}
	_, err := SendEmail(context.Background(), svc, Email{From: "a@b.c"})
	assert.Error(t, err)
	assert.Nil(t, svc.input)
}

func TestSendEmail_Error(t *testing.T) {
	_, err := SendEmail(context.Background(), &mockSES{err: errors.New("throttled")}, Email{To: []string{"x@y.z"}})
	assert.EqualError(t, err, "throttled")
}

func TestPublishSMS(t *testing.T) {
	svc := &mockSNS{}
	id, err := PublishSMS(context.Background(), svc, "+15550100", "Hot queue over threshold")

	require.NoError(t, err)
	assert.Equal(t, "sns-456", id)
	assert.Equal(t, "+15550100", aws.ToString(svc.input.PhoneNumber))
	assert.Equal(t, "Transactional", aws.ToString(svc.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}
