package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/service"
)

type AdminHandler struct {
	adminService   *service.AdminService
	packageService *service.PackageService
}

func NewAdminHandler(adminService *service.AdminService, packageService *service.PackageService) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		packageService: packageService,
	}
}

// Login 管理员登录
// POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.adminService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.AuthError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// ListAccounts 账户列表
// GET /admin/accounts
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	page, pageSize := pagination(c)

	items, total, err := h.adminService.ListAccounts(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// GetAccount 账户详情
// GET /admin/accounts/:id
func (h *AdminHandler) GetAccount(c *gin.Context) {
	info, err := h.adminService.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.Success(c, info)
}

// ListPurchases 账户购买记录
// GET /admin/accounts/:id/purchases
func (h *AdminHandler) ListPurchases(c *gin.Context) {
	items, err := h.adminService.ListPurchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.Success(c, gin.H{
		"purchases": items,
	})
}

// ListUsage 账户消耗记录
// GET /admin/accounts/:id/usage
func (h *AdminHandler) ListUsage(c *gin.Context) {
	page, pageSize := pagination(c)

	items, total, err := h.adminService.ListUsage(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// AddCredits 手动充值
// POST /admin/accounts/:id/credits
func (h *AdminHandler) AddCredits(c *gin.Context) {
	var req dto.AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.adminService.AddCredits(c.Request.Context(), c.Param("id"), req.Credits)
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.SuccessWithMessage(c, "credits added", info)
}

// ActivateSubscription 手动开通无限订阅，请求体可省略
// POST /admin/accounts/:id/subscription
func (h *AdminHandler) ActivateSubscription(c *gin.Context) {
	var req dto.SubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	info, err := h.adminService.ActivateSubscription(c.Request.Context(), c.Param("id"), req.ExpiresAt)
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.SuccessWithMessage(c, "subscription activated", info)
}

// DeactivateSubscription 手动取消无限订阅
// DELETE /admin/accounts/:id/subscription
func (h *AdminHandler) DeactivateSubscription(c *gin.Context) {
	info, err := h.adminService.DeactivateSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.accountError(c, err)
		return
	}

	response.SuccessWithMessage(c, "subscription deactivated", info)
}

// ListPackages 全部套餐
// GET /admin/packages
func (h *AdminHandler) ListPackages(c *gin.Context) {
	items, err := h.packageService.List(c.Request.Context())
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"packages": items,
	})
}

// CreatePackage 创建套餐
// POST /admin/packages
func (h *AdminHandler) CreatePackage(c *gin.Context) {
	var req dto.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.packageService.Create(c.Request.Context(), &req)
	if err != nil {
		h.packageError(c, err)
		return
	}

	response.SuccessWithMessage(c, "package created", info)
}

// UpdatePackage 修改套餐
// PUT /admin/packages/:id
func (h *AdminHandler) UpdatePackage(c *gin.Context) {
	var req dto.UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.packageService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.packageError(c, err)
		return
	}

	response.Success(c, info)
}

// DeletePackage 下架套餐
// DELETE /admin/packages/:id
func (h *AdminHandler) DeletePackage(c *gin.Context) {
	if err := h.packageService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.packageError(c, err)
		return
	}

	response.SuccessWithMessage(c, "package deactivated", nil)
}

func (h *AdminHandler) accountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

func (h *AdminHandler) packageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPackageNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrInvalidPackage),
		errors.Is(err, service.ErrPackageInUse),
		errors.Is(err, service.ErrNothingToApply):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
