package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/panelator/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the translation queue HTTP API",
		Long: `Starts the Panelator HTTP API on the specified port.

The API enqueues chapters from the library, controls the queue, serves
stored results and streams job status changes as server-sent events.
With auto_translate enabled, every chapter in the library is queued on start.`,
		Example: `  # Start server on default port 8888
  panelator serve

  # Start server on custom port
  panelator serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if a.prefs.AutoTranslate {
				queued, skipped, err := a.enqueueLibrary("", "")
				if err != nil {
					slog.Error("Unable to queue library", "err", err)
				} else {
					slog.Info("Queued library", "queued", queued, "skipped", skipped)
				}
			}

			handler := handlers.New(a.manager, a.library, slog.Default())

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/translations", handler.HandleTranslations)
			mux.HandleFunc("/api/result", handler.HandleResult)
			mux.HandleFunc("/api/queue", handler.HandleQueue)
			mux.HandleFunc("/api/queue/", handler.HandleQueue)
			mux.HandleFunc("/api/documents", handler.HandleDocuments)
			mux.HandleFunc("/api/events", handler.HandleEvents)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
				// event streams end when the command is interrupted
				BaseContext: func(net.Listener) context.Context { return cmd.Context() },
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Panelator API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
