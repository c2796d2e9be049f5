package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/topazahmed/dhandha"
	"github.com/topazahmed/dhandha/api"
	"github.com/topazahmed/dhandha/auth"
)

func main() {

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	txtHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slogger := slog.New(txtHandler)
	slog.SetDefault(slogger)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slogger.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	hub := dhandha.NewHub(context.Background(), dhandha.Options{
		Slogger: slogger,
	})
	go hub.Start()

	verifier := auth.NewJWTVerifier([]byte(secret))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleSocket(verifier, socketError))
	mux.Handle("/", api.NewRouter(os.Getenv("CLIENT_URL")))

	s := http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		slogger.Info("server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	<-ctx.Done()
	slog.Info("shutting down hub")
	hub.Stop()
	slog.Info("shutting down server")
	s.Shutdown(context.Background())
	slog.Info("shutdown complete")
}

func socketError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		http.Error(w, "Authentication error", http.StatusUnauthorized)
	default:
		http.Error(w, "error", http.StatusBadRequest)
	}
}
