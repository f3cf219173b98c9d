package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vrcampos/linkgate/internal/botranges"
	"github.com/vrcampos/linkgate/internal/cache"
	"github.com/vrcampos/linkgate/internal/config"
	"github.com/vrcampos/linkgate/internal/localdb"
	"github.com/vrcampos/linkgate/internal/policy"
	"github.com/vrcampos/linkgate/internal/server"
	"github.com/vrcampos/linkgate/internal/signals"
	"github.com/vrcampos/linkgate/internal/store"
	"github.com/vrcampos/linkgate/internal/token"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg := config.Load()
	if cfg.DestinationURL == "" {
		log.Fatal("[main] DESTINATION_URL is required")
	}

	var st store.Store
	if cfg.StoreType != "" {
		s, err := store.New(cfg.StoreType, cfg.StoreDSN)
		if err != nil {
			log.Printf("[main] WARNING: failed to open persistent signal cache: %v", err)
		} else {
			st = s
			defer s.Close()
		}
	}

	local := localdb.Open(cfg.MMDBPath)
	defer local.Close()

	ranges := botranges.NewRegistry()
	sig := signals.New(cache.New(), st, local, ranges, cfg.AbuseIPDBKey)
	gate := policy.NewGate(cfg.RequiredCountry, cfg.AllowedLangs)

	tokens, err := token.NewService(cfg.EncryptSecret)
	if err != nil {
		log.Fatalf("[main] token service init failed: %v", err)
	}

	srv := server.New(cfg, sig, tokens, gate, ranges)

	addr := cfg.Host + ":" + cfg.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("[main] Shutting down...")
		httpServer.Close()
	}()

	authStatus := "disabled"
	if cfg.AuthKey != "" {
		authStatus = "enabled"
	}
	log.Printf("[main] Traffic gate starting on %s", addr)
	log.Printf("[main] Country: %s | Langs: %v | UA veto: %v | Local DB: %v | Store: %v | Auth: %s",
		cfg.RequiredCountry, cfg.AllowedLangs, cfg.UAVeto, local != nil, st != nil, authStatus)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("[main] Server error: %v", err)
	}

	log.Println("[main] Server stopped")
}
