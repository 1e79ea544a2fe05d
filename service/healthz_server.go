package service

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type HealthzServer struct {
	ctx    context.Context
	server *http.Server
	log    zerolog.Logger
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	server := &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    addr,
	}
	h.server = server
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Str("path", r.URL.Path).Msg("received health check request")
	w.Write([]byte("OK")) //nolint:errcheck
}
