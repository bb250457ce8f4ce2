package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

type Credentials struct {
	AccountSID string
	AuthToken  string
	From       string
}

type Call struct {
	To       string
	Message  string
	Language string
	// Timeout is how long the call rings before giving up, in seconds.
	Timeout int
}

// Client places outbound voice calls that read a message aloud.
// Credentials are passed per call because they live in the settings table.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) Call(ctx context.Context, creds Credentials, call Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := voiceDocument(call)
	if err != nil {
		return "", err
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.AccountSID,
		Password: creds.AuthToken,
	})

	params := &api.CreateCallParams{}
	params.SetTo(call.To)
	params.SetFrom(creds.From)
	params.SetTwiml(doc)
	if call.Timeout > 0 {
		params.SetTimeout(call.Timeout)
	}

	resp, err := client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio: %w", err)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio: response without call sid")
	}
	return *resp.Sid, nil
}

// voiceDocument renders the TwiML that reads the message once.
func voiceDocument(call Call) (string, error) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{
			Message:  call.Message,
			Language: call.Language,
		},
	})
	if err != nil {
		return "", fmt.Errorf("twiml: %w", err)
	}
	return doc, nil
}
