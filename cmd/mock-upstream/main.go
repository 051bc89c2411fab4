// Command mock-upstream serves the bundled catalog fixture on the same routes
// as the real API so the gateway and TUI can run offline.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"anihub/internal/upstream/upstreamtest"
)

func main() {
	addr := flag.String("addr", ":4444", "listen address")
	prefix := flag.String("prefix", "/api", "path prefix the routes are mounted under")
	fail := flag.String("fail", "", "path prefix that should answer 500, for exercising error states")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	fake := upstreamtest.New()
	if *fail != "" {
		fake.Fail(*fail, http.StatusInternalServerError)
	}

	mux := http.NewServeMux()
	mux.Handle(*prefix+"/", http.StripPrefix(*prefix, fake.Handler()))

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[mock-upstream] serving fixture on %s%s", *addr, *prefix)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[mock-upstream] %v", err)
	}
}
