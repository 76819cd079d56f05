package notifications

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"harambee/mutual-aid/mutual-aid-backend/internal/members"
)

// ContactLookup resolves a recipient's contact details.
type ContactLookup interface {
	GetMember(ctx context.Context, id primitive.ObjectID) (*members.Member, error)
}

// SESSender is the slice of the SESv2 API the email channel uses.
type SESSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailChannel delivers events by email through AWS SESv2.
type EmailChannel struct {
	client SESSender
	lookup ContactLookup
	sender string
}

// NewEmailChannel creates the SES-backed email subscriber.
func NewEmailChannel(client SESSender, lookup ContactLookup, sender string) *EmailChannel {
	return &EmailChannel{client: client, lookup: lookup, sender: sender}
}

// Name implements Subscriber.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements Subscriber.
func (c *EmailChannel) Deliver(ctx context.Context, event Event) error {
	if event.RecipientID.IsZero() {
		// Section-wide events go out over the socket only.
		return nil
	}

	member, err := c.lookup.GetMember(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if member.Email == "" {
		return nil
	}

	subject, body := RenderMessage(event)
	_, err = c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.sender),
		Destination: &sestypes.Destination{
			ToAddresses: []string{member.Email},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
