package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synapse-ai/synapse/internal/chat"
	"github.com/synapse-ai/synapse/internal/conversation"
	"github.com/synapse-ai/synapse/internal/rag"
)

// handleChat streams the assistant's answer as plain text. Metadata the
// client needs before the body travels in headers: X-Conversation-Id
// carries the (possibly new) conversation id and X-Citations the
// base64-encoded citation list, since header values must stay ASCII-safe.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", codeBadRequest)
		return
	}

	turn, err := s.chat.Prepare(r.Context(), userID, req)
	if err != nil {
		var ve *chat.ValidationError
		switch {
		case errors.As(err, &ve):
			writeFieldErrors(w, ve.Fields)
		case errors.Is(err, conversation.ErrNotFound):
			writeError(w, http.StatusNotFound, "Conversation not found", codeNotFound)
		default:
			s.logger.Error("chat prepare failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		}
		return
	}

	// A turn without context has no citations; clients still expect the
	// header to decode to a JSON array, never null.
	citations := turn.Citations
	if citations == nil {
		citations = []rag.Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Conversation-Id", turn.Conversation.ID.String())
	w.Header().Set("X-Citations", base64.StdEncoding.EncodeToString(citationsJSON))
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	err = turn.Stream(r.Context(), func(text string) error {
		if _, err := w.Write([]byte(text)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// The status line is gone; all we can do is cut the stream.
		s.logger.Error("chat stream failed",
			"user_id", userID, "conversation_id", turn.Conversation.ID, "error", err)
	}
}
