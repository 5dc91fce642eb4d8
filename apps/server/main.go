package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"jass-lite/apps/server/internal/auth"
	"jass-lite/apps/server/internal/dbutil"
	"jass-lite/apps/server/internal/gateway"
	"jass-lite/apps/server/internal/ledger"
	"jass-lite/apps/server/internal/lobby"
)

const shutdownTimeout = 10 * time.Second

func main() {
	authService, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	ledgerService, ledgerMode, err := ledger.NewServiceFromEnv(authMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	writer := ledger.NewWriter(ledgerService, dbutil.EnvInt("LEDGER_QUEUE_SIZE", 0))
	lobbyCfg := lobby.ConfigFromEnv()
	lby := lobby.New(lobbyCfg, writer)
	gw := gateway.New(lby, authService, gateway.Options{
		AllowedOrigins: splitList(os.Getenv("WS_ALLOWED_ORIGINS")),
	})
	authHTTP := auth.NewHTTPHandler(authService)
	historyHTTP := ledger.NewHTTPHandler(authService, ledgerService)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("GET /health", gw.HandleHealth)
	authHTTP.RegisterRoutes(mux)
	historyHTTP.RegisterRoutes(mux)

	addr := dbutil.FirstEnv(":8080", "LISTEN_ADDR")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[Server] Auth mode: %s", authMode)
		log.Printf("[Server] Ledger mode: %s", ledgerMode)
		log.Printf("[Server] Rules: target=%d maxRounds=%d nextRoundDelay=%s",
			lobbyCfg.Rules.TargetScore, lobbyCfg.Rules.MaxRounds, lobbyCfg.NextRoundDelay)
		log.Printf("[Server] Starting WebSocket server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] Failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] HTTP shutdown: %v", err)
	}
	lby.Shutdown(shutdownTimeout / 2)
	gw.Close()
	writer.Close()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
