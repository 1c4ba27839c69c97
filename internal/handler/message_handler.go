package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/service"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/response"
)

// MessageHandler exposes the internal messaging endpoints.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send godoc
// @Summary Send a message to another user
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body service.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	message, err := h.messages.Send(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Conversation godoc
// @Summary List the conversation with another user
// @Tags Messages
// @Produce json
// @Param userId path string true "Other participant ID"
// @Success 200 {object} response.Envelope
// @Router /messages/conversation/{userId} [get]
func (h *MessageHandler) Conversation(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	messages, err := h.messages.ListConversation(c.Request.Context(), claims.UserID, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// MessageableUsers godoc
// @Summary List users the caller may message
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /messages/users [get]
func (h *MessageHandler) MessageableUsers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	peers, err := h.messages.GetMessageableUsers(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, peers, nil)
}

// MarkRead godoc
// @Summary Mark a received message as read
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 204
// @Router /messages/{id}/read [put]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a message from the caller's view
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 204
// @Router /messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.messages.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
