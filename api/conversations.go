package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/synapse-ai/synapse/internal/config"
	"github.com/synapse-ai/synapse/internal/conversation"
)

type conversationJSON struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type conversationListJSON struct {
	conversationJSON
	MessageCount int    `json:"messageCount"`
	LastMessage  string `json:"lastMessage"`
}

type messageJSON struct {
	ID        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Citations json.RawMessage `json:"citations,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toConversationJSON(c *conversation.Conversation) conversationJSON {
	return conversationJSON{
		ID:        c.ID,
		Title:     c.Title,
		Model:     c.Model,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := s.conversations.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing conversations failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	out := make([]conversationListJSON, len(items))
	for i, it := range items {
		out[i] = conversationListJSON{
			conversationJSON: toConversationJSON(&it.Conversation),
			MessageCount:     it.MessageCount,
			LastMessage:      it.LastMessage,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", codeBadRequest)
		return
	}

	fields := make(map[string]string)
	if len([]rune(req.Title)) > 100 {
		fields["title"] = "Title must be at most 100 characters"
	}
	if req.Model == "" {
		req.Model = config.ModelGPT4o
	}
	if _, ok := config.SupportedModels[req.Model]; !ok {
		fields["model"] = "Unsupported model: " + req.Model
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}
	if req.Title == "" {
		req.Title = "New Chat"
	}

	conv, err := s.conversations.Create(r.Context(), userID, req.Title, req.Model)
	if err != nil {
		s.logger.Error("creating conversation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationJSON(conv))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	conv, err := s.conversations.Get(r.Context(), id, userID)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", codeNotFound)
		return
	}
	if err != nil {
		s.logger.Error("getting conversation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	messages, err := s.conversations.Messages(r.Context(), id, 0)
	if err != nil {
		s.logger.Error("listing messages failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}

	out := struct {
		conversationJSON
		Messages []messageJSON `json:"messages"`
	}{
		conversationJSON: toConversationJSON(conv),
		Messages:         make([]messageJSON, len(messages)),
	}
	for i, m := range messages {
		out.Messages[i] = messageJSON{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Citations: m.Citations,
			CreatedAt: m.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", codeBadRequest)
		return
	}
	if req.Title == "" || len([]rune(req.Title)) > 100 {
		writeFieldErrors(w, map[string]string{"title": "Title must be between 1 and 100 characters"})
		return
	}

	err := s.conversations.UpdateTitle(r.Context(), id, userID, req.Title)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", codeNotFound)
		return
	}
	if err != nil {
		s.logger.Error("renaming conversation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, userID string) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	err := s.conversations.Delete(r.Context(), id, userID)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found", codeNotFound)
		return
	}
	if err != nil {
		s.logger.Error("deleting conversation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// pathUUID parses the named path segment as a UUID, writing a 400 on
// failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", codeBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
