package dialer

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestDial(t *testing.T) {
	ctrl := gomock.NewController(t)
	creator := NewMockCallCreator(ctrl)

	sid := "CA123"
	creator.EXPECT().
		CreateCall(gomock.Any()).
		DoAndReturn(func(p *openapi.CreateCallParams) (*openapi.ApiV2010Call, error) {
			assert.Equal(t, "+15551234567", *p.To)
			assert.Equal(t, "+15550000000", *p.From)
			assert.Equal(t, "https://example.com/twiml", *p.Url)
			assert.Equal(t, "POST", *p.Method)
			return &openapi.ApiV2010Call{Sid: &sid}, nil
		})

	d := New(creator, "+15550000000", "https://example.com")
	got, err := d.Dial("+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "CA123", got)
}

func TestDial_MissingNumber(t *testing.T) {
	ctrl := gomock.NewController(t)
	creator := NewMockCallCreator(ctrl)

	_, err := New(creator, "+15550000000", "https://example.com").Dial("")
	assert.Equal(t, ErrMissingNumber, err)
}

func TestDial_CreateError(t *testing.T) {
	ctrl := gomock.NewController(t)
	creator := NewMockCallCreator(ctrl)
	creator.EXPECT().CreateCall(gomock.Any()).Return(nil, errors.New("401 unauthorized"))

	_, err := New(creator, "+15550000000", "https://example.com").Dial("+15551234567")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create call to +15551234567")
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestDial_NoSid(t *testing.T) {
	ctrl := gomock.NewController(t)
	creator := NewMockCallCreator(ctrl)
	creator.EXPECT().CreateCall(gomock.Any()).Return(&openapi.ApiV2010Call{}, nil)

	_, err := New(creator, "+15550000000", "https://example.com").Dial("+15551234567")
	assert.Error(t, err)
}
