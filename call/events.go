package call

// Media stream event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventClosed    = "closed"
	EventMark      = "mark"
)

// twilioEvent is one JSON message of a Twilio media stream.
type twilioEvent struct {
	Event     string `json:"event"` // "connected", "start", "media", "stop"
	Protocol  string `json:"protocol"`
	Version   string `json:"version"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Track   string `json:"track"`
		Chunk   string `json:"chunk"`
		Payload string `json:"payload"` // base64 audio
	} `json:"media"`
	Start struct {
		AccountSid  string   `json:"accountSid"`
		CallSid     string   `json:"callSid"`
		StreamSid   string   `json:"streamSid"`
		Tracks      []string `json:"tracks"`
		MediaFormat struct {
			Encoding   string `json:"encoding"`
			SampleRate int    `json:"sampleRate"`
			Channels   int    `json:"channels"`
		} `json:"mediaFormat"`
	} `json:"start"`
}
