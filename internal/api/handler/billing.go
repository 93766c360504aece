package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/service"
)

type BillingHandler struct {
	checkoutService *service.CheckoutService
}

func NewBillingHandler(checkoutService *service.CheckoutService) *BillingHandler {
	return &BillingHandler{
		checkoutService: checkoutService,
	}
}

// ListPackages 在售套餐
// GET /api/v1/packages
func (h *BillingHandler) ListPackages(c *gin.Context) {
	packages, err := h.checkoutService.ListPackages(c.Request.Context())
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"packages": packages,
	})
}

// CreateCheckout 创建支付会话
// POST /api/v1/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.checkoutService.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPackageNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrPackageInactive):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// GetPurchaseStatus 支付完成页轮询订单状态
// GET /api/v1/checkout/:session_id
func (h *BillingHandler) GetPurchaseStatus(c *gin.Context) {
	status, err := h.checkoutService.GetPurchaseStatus(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, service.ErrPurchaseNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}
