package server

import (
	"net/http"
	"time"

	"ESMP/core/fetch"
	"ESMP/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 10 * time.Second

// StateFeedHandler pushes fetch state summaries over a WebSocket: first the
// current state of both targets, then every change until the client leaves.
// Filtered updates are limited to the caller's session.
func (h *APIHandler) StateFeedHandler(w http.ResponseWriter, r *http.Request) {
	var scope string
	if sess, ok := h.sessions.Lookup(r); ok {
		scope = sess.ID
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.controller.Subscribe()
	defer unsubscribe()

	// The feed is one-way; reading only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(s fetch.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(s.Summary()); err != nil {
			logger.Debug("state feed closed", logger.ErrorField(err))
			return false
		}
		return true
	}

	if !send(h.controller.Snapshot(fetch.TargetAll)) || !send(h.controller.FilteredSnapshot(scope)) {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case s := <-updates:
			if s.Target == fetch.TargetFiltered && s.Scope != scope {
				continue
			}
			if !send(s) {
				return
			}
		}
	}
}
