// Package server exposes the TwiML endpoint, the media stream websocket and
// the outbound call trigger.
package server

import (
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/twilio/twilio-go/twiml"

	"github.com/mrsingh-rishi/media-transcriber/call"
	"github.com/mrsingh-rishi/media-transcriber/config"
	"github.com/mrsingh-rishi/media-transcriber/dialer"
	"github.com/mrsingh-rishi/media-transcriber/output"
	"github.com/mrsingh-rishi/media-transcriber/stt"
	"github.com/mrsingh-rishi/media-transcriber/worker"
)

// Dialer places an outbound call and returns its SID.
type Dialer interface {
	Dial(to string) (string, error)
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Recognizer stt.Recognizer
	Dialer     Dialer // optional; POST /call is only served when set
	Logger     *log.Logger
	// Transcripts receives printed transcripts. Defaults to stdout.
	Transcripts io.Writer
}

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
}

// New builds the fiber app.
func New(cfg *config.Config, deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Transcripts == nil {
		deps.Transcripts = os.Stdout
	}
	console := output.NewConsole(deps.Transcripts)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	twimlHandler := func(c *fiber.Ctx) error {
		streamURL := cfg.StreamURL
		if streamURL == "" {
			streamURL = "wss://" + c.Hostname() + "/media"
		}
		doc, err := twimlResponse(streamURL, cfg.PauseLength)
		if err != nil {
			deps.Logger.Error("render twiml", "err", err)
			return fiber.ErrInternalServerError
		}
		c.Type("xml")
		return c.SendString(doc)
	}
	app.Get("/twiml", twimlHandler)
	app.Post("/twiml", twimlHandler)

	// Middleware to require WebSocket upgrade on /media
	app.Use("/media", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/media", websocket.New(func(ws *websocket.Conn) {
		defer ws.Close()
		deps.Logger.Info("websocket connected", "remote", ws.RemoteAddr())

		c := call.NewController(ws, call.Options{
			Recognizer: deps.Recognizer,
			Worker: worker.Options{
				Config:         stt.PhoneCallConfig(cfg.LanguageCode),
				ReconnectDelay: cfg.ReconnectDelay,
				Output:         console,
			},
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          deps.Logger,
		})
		c.Run()
	}))

	if deps.Dialer != nil {
		app.Post("/call", func(c *fiber.Ctx) error {
			var req callRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
			}
			sid, err := deps.Dialer.Dial(req.To)
			if errors.Is(err, dialer.ErrMissingNumber) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`to` field is required"})
			}
			if err != nil {
				deps.Logger.Error("twilio error", "err", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create call"})
			}
			deps.Logger.Info("call initiated", "sid", sid, "to", req.To)
			return c.JSON(callResponse{SID: sid, Message: "call initiated"})
		})
	}

	return app
}

// twimlResponse starts a media stream to streamURL and keeps the call open
// for pause seconds.
func twimlResponse(streamURL string, pause int) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceStart{
			InnerElements: []twiml.Element{
				&twiml.VoiceStream{Url: streamURL},
			},
		},
		&twiml.VoicePause{Length: strconv.Itoa(pause)},
	})
}
