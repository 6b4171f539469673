package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESConfig struct {
	From Mailbox
}

// SESSender delivers through the SES v2 SendEmail API.
type SESSender struct {
	client sesAPI
	from   Mailbox
	logger *logging.Logger
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{client: client, from: cfg.From.withDefaultName(), logger: logger}
}

func utf8Content(data string) *types.Content {
	if data == "" {
		return nil
	}
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To.String()}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body: &types.Body{
					Text: utf8Content(msg.Text),
					Html: utf8Content(msg.HTML),
				},
			},
		},
	}
	if msg.Template != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("template"), Value: aws.String(msg.Template)}}
	}

	out, err := s.client.SendEmail(ctx, input)
	var messageID string
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	return reportDelivery(s.logger, "ses", msg, err, "message_id", messageID)
}

var _ EmailSender = (*SESSender)(nil)
