package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func reminder() EmailMessage {
	return EmailMessage{
		To:       Mailbox{Address: "ana@example.com", Name: "Ana"},
		Subject:  "Appointment reminder",
		Text:     "see you",
		HTML:     "<p>see you</p>",
		Template: templateReminder,
	}
}

func TestMailboxString(t *testing.T) {
	assert.Equal(t, "desk@lumeskin.test", Mailbox{Address: "desk@lumeskin.test"}.String())
	assert.Equal(t, `"Lume Skin" <desk@lumeskin.test>`, Mailbox{Address: "desk@lumeskin.test", Name: "Lume Skin"}.String())
}

func TestNewSendGridSenderRequiresAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{From: Mailbox{Address: "desk@lumeskin.test"}}, nil))

	s := NewSendGridSender(SendGridConfig{APIKey: "key", From: Mailbox{Address: "desk@lumeskin.test"}}, nil)
	require.NotNil(t, s)
	assert.Equal(t, defaultFromName, s.from.Name)
}

func TestSendGridSenderBuildsMessage(t *testing.T) {
	var got *mail.SGMailV3
	post := func(_ context.Context, m *mail.SGMailV3) (int, string, error) {
		got = m
		return 202, "", nil
	}
	s := newSendGridSender(post, Mailbox{Address: "desk@lumeskin.test", Name: "Front Desk"}, nil)

	require.NoError(t, s.Send(context.Background(), reminder()))
	require.NotNil(t, got)
	assert.Equal(t, "Appointment reminder", got.Subject)
	assert.Equal(t, "Front Desk", got.From.Name)
	assert.Equal(t, "ana@example.com", got.Personalizations[0].To[0].Address)
	assert.Equal(t, []string{templateReminder}, got.Categories)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "see you", got.Content[0].Value)
	assert.Equal(t, "<p>see you</p>", got.Content[1].Value)
}

func TestSendGridSenderErrorStatus(t *testing.T) {
	post := func(context.Context, *mail.SGMailV3) (int, string, error) {
		return 401, "bad key", nil
	}
	err := newSendGridSender(post, Mailbox{Address: "desk@lumeskin.test"}, nil).Send(context.Background(), reminder())
	assert.ErrorContains(t, err, "status 401")

	post = func(context.Context, *mail.SGMailV3) (int, string, error) {
		return 0, "", errors.New("dial tcp: timeout")
	}
	err = newSendGridSender(post, Mailbox{Address: "desk@lumeskin.test"}, nil).Send(context.Background(), reminder())
	assert.ErrorContains(t, err, "notify: sendgrid: dial tcp")
}

func TestLogSenderHonoursContext(t *testing.T) {
	s := NewLogSender(nil)
	assert.NoError(t, s.Send(context.Background(), reminder()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, reminder()), context.Canceled)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{From: Mailbox{Address: "desk@lumeskin.test"}}, nil)
	require.NotNil(t, sender)

	require.NoError(t, sender.Send(context.Background(), reminder()))
	in := client.input
	require.NotNil(t, in)
	assert.Equal(t, `"Lume Skin" <desk@lumeskin.test>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{`"Ana" <ana@example.com>`}, in.Destination.ToAddresses)
	assert.Equal(t, "see you", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>see you</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, templateReminder, aws.ToString(in.EmailTags[0].Value))
}

func TestSESSenderTextOnly(t *testing.T) {
	client := &fakeSES{}
	msg := reminder()
	msg.HTML = ""
	require.NoError(t, NewSESSender(client, SESConfig{}, nil).Send(context.Background(), msg))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
}

func TestSESSenderError(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{From: Mailbox{Address: "x@y.test"}}, nil)
	assert.ErrorContains(t, sender.Send(context.Background(), reminder()), "notify: ses: throttled")
}

func TestNewSESSenderNilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestSMTPSenderSend(t *testing.T) {
	d := &fakeDialer{}
	sender := newSMTPSender(d, Mailbox{Address: "desk@lumeskin.test"}, nil)

	require.NoError(t, sender.Send(context.Background(), reminder()))
	require.Len(t, d.sent, 1)
	m := d.sent[0]
	assert.Equal(t, []string{"Appointment reminder"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{templateReminder}, m.GetHeader(templateHeader))
	assert.Contains(t, m.GetHeader("To")[0], "ana@example.com")
	assert.Contains(t, m.GetHeader("From")[0], "Lume Skin")
}

func TestSMTPSenderError(t *testing.T) {
	sender := newSMTPSender(&fakeDialer{err: errors.New("connection refused")}, Mailbox{Address: "x@y.test"}, nil)
	assert.ErrorContains(t, sender.Send(context.Background(), reminder()), "connection refused")
}

func TestNewSMTPSenderRequiresHost(t *testing.T) {
	assert.Nil(t, NewSMTPSender(SMTPConfig{}, nil))
	s := NewSMTPSender(SMTPConfig{Host: "smtp.test", Username: "desk@lumeskin.test"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, "desk@lumeskin.test", s.from.Address)
}
