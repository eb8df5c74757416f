package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/fernhollow/sprout/internal/auth"
	"github.com/fernhollow/sprout/internal/model"
)

// BabyLister is the slice of the baby store the handler needs to resolve
// which babies the connecting user may watch.
type BabyLister interface {
	ListForUser(userID int64) ([]model.Baby, error)
}

// Handler returns an HTTP handler that upgrades authenticated connections to
// WebSocket and runs them as Hub clients. It must sit behind the strict auth
// middleware.
func Handler(hub *Hub, babies BabyLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		list, err := babies.ListForUser(userID)
		if err != nil {
			logger.Error("list babies for websocket", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		ids := make([]int64, len(list))
		for i, b := range list {
			ids[i] = b.ID
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ids)
		client.Run(r.Context())
	}
}
