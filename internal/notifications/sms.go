package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSPublisher is the slice of the SNS API the SMS channel uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSChannel delivers events by SMS through AWS SNS.
type SMSChannel struct {
	client SNSPublisher
	lookup ContactLookup
}

// NewSMSChannel creates the SNS-backed SMS subscriber.
func NewSMSChannel(client SNSPublisher, lookup ContactLookup) *SMSChannel {
	return &SMSChannel{client: client, lookup: lookup}
}

// Name implements Subscriber.
func (c *SMSChannel) Name() string { return "sms" }

// Deliver implements Subscriber.
func (c *SMSChannel) Deliver(ctx context.Context, event Event) error {
	if event.RecipientID.IsZero() {
		return nil
	}

	member, err := c.lookup.GetMember(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if member.Phone == "" {
		return nil
	}

	_, body := RenderMessage(event)
	_, err = c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(member.Phone),
		Message:     aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	return nil
}
