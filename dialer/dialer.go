// Package dialer places outbound calls whose audio is streamed back to the
// server.
package dialer

import (
	"github.com/pkg/errors"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrMissingNumber = errors.New("dialer: destination number is required")

//go:generate mockgen -destination=mock_callcreator_test.go -package=dialer . CallCreator

// CallCreator creates calls. The Api service of a twilio.RestClient
// satisfies it.
type CallCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

type Dialer struct {
	creator  CallCreator
	from     string
	twimlURL string
}

// New returns a Dialer calling from the given number. Twilio fetches call
// instructions from publicURL + "/twiml".
func New(creator CallCreator, from, publicURL string) *Dialer {
	return &Dialer{
		creator:  creator,
		from:     from,
		twimlURL: publicURL + "/twiml",
	}
}

// NewTwilio returns a Dialer backed by the Twilio REST API.
func NewTwilio(accountSID, authToken, from, publicURL string) *Dialer {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return New(client.Api, from, publicURL)
}

// Dial calls to and returns the new call's SID.
func (d *Dialer) Dial(to string) (string, error) {
	if to == "" {
		return "", ErrMissingNumber
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetUrl(d.twimlURL)
	params.SetMethod("POST")

	resp, err := d.creator.CreateCall(params)
	if err != nil {
		return "", errors.Wrapf(err, "create call to %s", to)
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("dialer: call created without a sid")
	}
	return *resp.Sid, nil
}
