package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/policyvoice/internal/gateway"
	"github.com/ziadkadry99/policyvoice/internal/server"
	"github.com/ziadkadry99/policyvoice/internal/speech"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the voice assistant server",
	Long:  `Starts the HTTP server with the websocket voice endpoint (/ws), the browser page, the REST chat API and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Port
		if serverPort > 0 {
			port = serverPort
		}

		// Audio turns need Whisper; text turns keep working without it.
		var transcriber speech.Transcriber
		whisper, err := speech.NewWhisperTranscriber(speech.WhisperConfig{
			Model:    a.cfg.STTModel,
			Language: a.cfg.STTLanguage,
			Timeout:  a.cfg.STTTimeout,
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("speech-to-text disabled")
		} else {
			transcriber = whisper
		}

		srv := server.New(server.Config{
			Port:           port,
			AllowedOrigins: a.cfg.AllowedOrigins,
		}, a.logger)

		gw := gateway.New(a.orchestrator, a.store, transcriber, a.logger)
		gw.SetMaxMessageBytes(a.cfg.MaxMessageBytes)
		gw.RegisterRoutes(srv.Router())

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			a.logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		a.logger.Info().
			Str("version", Version).
			Int("port", port).
			Str("provider", string(a.cfg.Provider)).
			Str("model", a.cfg.Model).
			Str("store", string(a.cfg.Store)).
			Msg("policyvoice server starting")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
