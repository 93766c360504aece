package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/pkg/tally"
	"github.com/applysmartuk/statement_server/internal/service"
)

type SubmissionHandler struct {
	submissionService *service.SubmissionService
}

func NewSubmissionHandler(submissionService *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
	}
}

// Handle 表单 webhook
// POST /webhook
func (h *SubmissionHandler) Handle(c *gin.Context) {
	var payload tally.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("Submission payload could not be parsed: %v", err)
		response.ServerError(c, "invalid form payload")
		return
	}

	sub, err := tally.Extract(&payload)
	if err != nil {
		log.Printf("Submission %s rejected: %v", payload.Data.SubmissionID, err)
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.submissionService.Admit(c.Request.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConsentDenied):
			response.Error(c, response.CodeConsentDenied, "")
		default:
			log.Printf("Submission from %s failed: %v", sub.Email, err)
			response.ServerError(c, "")
		}
		return
	}

	if result.Status == dto.SubmissionInsufficientCredits {
		response.ErrorWithData(c, response.CodeInsufficientCredits, result.Message, result)
		return
	}

	response.SuccessWithMessage(c, result.Message, result)
}
