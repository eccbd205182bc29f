package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/trekka/core"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	ThreadID string `json:"thread_id"`
	Response string `json:"response"`
}

// NewChatRequest is the body of POST /new-chat.
type NewChatRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
}

// ConversationSummary is one entry of GET /conversations.
type ConversationSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ConversationsResponse is the body returned by GET /conversations.
type ConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// DeleteConversationRequest is the body of POST /delete-conversation.
type DeleteConversationRequest struct {
	ID string `json:"id"`
}

func (s *Server) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.tk.HandleTurn(c.Request.Context(), req.ThreadID, req.Message, userFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{ThreadID: res.ThreadID, Response: res.Reply})
}

func (s *Server) newChat(c *gin.Context) {
	var req NewChatRequest
	// an empty body is a request to start over without a previous thread
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	res, err := s.tk.CloseConversation(c.Request.Context(), req.ThreadID, userFrom(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listConversations(c *gin.Context) {
	recs, err := s.tk.Conversations(c.Request.Context(), userFrom(c).UserID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	out := ConversationsResponse{Conversations: make([]ConversationSummary, 0, len(recs))}
	for _, r := range recs {
		out.Conversations = append(out.Conversations, ConversationSummary{ID: r.ThreadID, Title: r.Title, Summary: r.Summary})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteConversation(c *gin.Context) {
	var req DeleteConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	// deleting an unknown or foreign id is acknowledged like a real delete
	if req.ID != "" {
		err := s.tk.DeleteConversation(c.Request.Context(), userFrom(c).UserID, req.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			s.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listFavorites(c *gin.Context) {
	favs, err := s.tk.Favorites(c.Request.Context(), userFrom(c).UserID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, favs)
}
