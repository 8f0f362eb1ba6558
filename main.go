package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mrsingh-rishi/media-transcriber/config"
	"github.com/mrsingh-rishi/media-transcriber/dialer"
	"github.com/mrsingh-rishi/media-transcriber/server"
	"github.com/mrsingh-rishi/media-transcriber/stt"
)

var (
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Live transcription of Twilio phone calls",
	Long: `transcriber accepts Twilio media streams over a websocket and prints
a live transcript of each call to stdout. Say "exit" or "quit" to end a session.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and media stream server",
	RunE:  runServe,
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place an outbound call that streams back to the server",
	RunE:  runCall,
}

func init() {
	callCmd.Flags().String("to", "", "Number to call, in E.164 format")
	_ = callCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	logger.SetLevel(level)
	return nil
}

func newRecognizer(ctx context.Context) (stt.Recognizer, func(), error) {
	switch cfg.STTProvider {
	case config.ProviderDeepgram:
		return stt.NewDeepgramClient(cfg.DeepgramAPIKey), func() {}, nil
	default:
		g, err := stt.NewGoogleRecognizer(ctx, cfg.GoogleCredentials)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, closeRec, err := newRecognizer(ctx)
	if err != nil {
		return errors.Wrap(err, "create recognizer")
	}
	defer closeRec()

	deps := server.Deps{Recognizer: rec, Logger: logger}
	if cfg.HasTwilio() && cfg.PublicURL != "" {
		deps.Dialer = dialer.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.PublicURL)
	}
	app := server.New(cfg, deps)

	addr := ":" + strconv.Itoa(cfg.Port)
	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(addr)
	}()
	logger.Info("server listening", "addr", addr, "stt", cfg.STTProvider, "stream", cfg.StreamURL)

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return nil
}

func runCall(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateCall(); err != nil {
		return err
	}
	to, _ := cmd.Flags().GetString("to")

	d := dialer.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.PublicURL)
	sid, err := d.Dial(to)
	if err != nil {
		return err
	}
	fmt.Println(sid)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
