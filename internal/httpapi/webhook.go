package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// webhookRequest is the inbound chat update. Anything without a message is
// acknowledged and dropped.
type webhookRequest struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// handleWebhook processes one inbound chat command. It always responds 200
// so the transport never retries: internal failures are logged, and the
// reply (if any) goes back out through the messenger.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == nil {
		return
	}

	chatID := req.Message.Chat.ID
	text := strings.TrimSpace(req.Message.Text)

	var reply string
	switch {
	case strings.HasPrefix(text, "/newcontent"):
		s.metrics.WebhookCommands.WithLabelValues("newcontent").Inc()
		_, title, err := s.svc.CreateContentItem(r.Context(), strings.TrimPrefix(text, "/newcontent"))
		if err != nil {
			log.Error().Err(err).Msg("create content item failed")
			return
		}
		reply = "✅ Content registered: " + title
	case text == "/id":
		s.metrics.WebhookCommands.WithLabelValues("id").Inc()
		reply = fmt.Sprintf("Chat ID: %d", chatID)
	default:
		s.metrics.WebhookCommands.WithLabelValues("other").Inc()
		reply = "Command received ✅ ( /newcontent or /id )"
	}

	if err := s.messenger.SendMessage(r.Context(), chatID, reply); err != nil {
		s.metrics.OutboundSends.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("webhook reply failed")
		return
	}
	s.metrics.OutboundSends.WithLabelValues("ok").Inc()
}
