package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/protocol"
)

// handleWatch streams the long status of one game over a websocket once per
// watch interval until the game disappears or the peer goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	gid, err := intParam(r, protocol.ParamGameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := multiplayer.GameID(gid)
	if _, err := s.reg.Status(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("watch upgrade failed", "game", id, "err", err)
		return
	}
	defer c.CloseNow()

	s.logger.Info("watcher connected", "game", id, "remote", r.RemoteAddr)
	defer s.logger.Info("watcher left", "game", id, "remote", r.RemoteAddr)

	// Watchers never send; CloseRead handles control frames and cancels ctx
	// once the peer closes.
	ctx := c.CloseRead(r.Context())

	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		st, err := s.reg.Status(id)
		if err != nil {
			_ = c.Close(websocket.StatusNormalClosure, "game over")
			return
		}
		wctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		err = wsjson.Write(wctx, c, st)
		cancel()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
