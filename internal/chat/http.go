package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// maxBodyBytes bounds a single webhook payload.
const maxBodyBytes = 64 << 10

type replyBody struct {
	Reply   string `json:"reply"`
	Handled bool   `json:"handled"`
}

// Webhook serves POST /chat/messages for a chat gateway. The gateway posts
// every group message; non-command messages get an unhandled, empty reply.
func Webhook(bot *Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&msg); err != nil {
			http.Error(w, "invalid message body", http.StatusBadRequest)
			return
		}

		reply, handled := bot.Handle(r.Context(), msg)
		if handled {
			slog.Debug("chat command handled", "sender", msg.Sender, "command", strings.Fields(msg.Body)[0])
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(replyBody{Reply: reply, Handled: handled}); err != nil {
			slog.Warn("failed to write chat reply", "error", err)
		}
	}
}
