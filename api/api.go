package api

import (
	"context"
	"net/http"
	"time"

	"github.com/mzharov/sketchroom/api/ws"
	"github.com/mzharov/sketchroom/config"
	"github.com/mzharov/sketchroom/room"
	"github.com/mzharov/sketchroom/worker"
)

type API struct {
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func New(registry *room.Registry, cfg *config.Config, shutdownCtx context.Context) *API {
	janitor := worker.NewJanitor(
		registry,
		time.Duration(cfg.Rooms.SweepSeconds)*time.Second,
		time.Duration(cfg.Rooms.GraceSeconds)*time.Second,
	)
	go janitor.Run(shutdownCtx)

	wsHandler := ws.NewHandler(registry, cfg.WS.MessagesPerSecond, cfg.WS.Burst)

	return &API{
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wsUpgrader := a.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.wsHandler.ServeWS(wsUpgrader, w, r, a.shutdownCtx)
	})
}
