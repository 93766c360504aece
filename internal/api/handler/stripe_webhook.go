package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/service"
)

// maxWebhookBody Stripe 事件体上限
const maxWebhookBody = 64 << 10

type StripeWebhookHandler struct {
	verifier   service.WebhookVerifier
	reconciler *service.ReconcilerService
}

func NewStripeWebhookHandler(verifier service.WebhookVerifier, reconciler *service.ReconcilerService) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// Handle 支付平台回调，状态码决定平台是否重试
// POST /stripe-webhook
func (h *StripeWebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeParamError, "could not read body")
		return
	}

	event, err := h.verifier.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Printf("Stripe webhook rejected: %v", err)
			response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeSignatureInvalid, "")
			return
		}
		response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeParamError, err.Error())
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		log.Printf("Stripe webhook %s (%s) failed: %v", event.ID, event.Type, err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, response.CodeServerError, "")
		return
	}

	response.Success(c, gin.H{"received": true})
}
