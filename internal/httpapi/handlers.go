package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/unimind/internal/auth"
	"github.com/xaenox/unimind/internal/conversation"
	"github.com/xaenox/unimind/internal/tools"
)

// conversationService is the subset of conversation.Manager used here.
type conversationService interface {
	SendMessage(ctx context.Context, tenantID, message, threadID string) (*conversation.Reply, error)
}

// toolService is the subset of tools.Dispatcher used here.
type toolService interface {
	HandleList(req tools.ListRequest) tools.Response
	HandleCall(ctx context.Context, tenantID string, req tools.CallRequest) tools.Response
}

// isoMillis matches the millisecond ISO-8601 form clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type Handlers struct {
	conversations conversationService
	tools         toolService
	version       string
	logger        *zap.Logger
}

func NewHandlers(conversations conversationService, toolsSvc toolService, version string, logger *zap.Logger) *Handlers {
	return &Handlers{
		conversations: conversations,
		tools:         toolsSvc,
		version:       version,
		logger:        logger,
	}
}

// sendMessageRequest is the body of POST /api/chat/send-message
type sendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type sendMessageResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
}

// SendMessage handles POST /api/chat/send-message
func (h *Handlers) SendMessage(c *gin.Context) {
	tenantID, ok := auth.TenantFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req sendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	reply, err := h.conversations.SendMessage(c.Request.Context(), tenantID, req.Message, req.ConversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message required"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sendMessageResponse{
		Success:        true,
		Response:       reply.Text,
		ConversationID: reply.ThreadID,
		Model:          reply.Model,
	})
}

// ListTools handles POST /api/mcp/tools/list
func (h *Handlers) ListTools(c *gin.Context) {
	var req tools.ListRequest
	if err := bindJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	c.JSON(http.StatusOK, h.tools.HandleList(req))
}

// CallTool handles POST /api/mcp/tools/call
func (h *Handlers) CallTool(c *gin.Context) {
	tenantID, ok := auth.TenantFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req tools.CallRequest
	if err := bindJSON(c, &req); err != nil {
		req = tools.CallRequest{}
	}

	resp := h.tools.HandleCall(c.Request.Context(), tenantID, req)
	if resp.Error != nil {
		h.logger.Warn("Tool call returned error",
			zap.String("tenant_id", tenantID),
			zap.String("error", resp.Error.Message))
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(isoMillis),
		Version:   h.version,
	})
}

// bindJSON binds the JSON body; an empty body leaves v untouched.
func bindJSON(c *gin.Context, v any) error {
	err := c.ShouldBindJSON(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
