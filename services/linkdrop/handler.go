package linkdrop

import (
	"net/http"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/errutil"
	"linkdrop-controlplane/pkg/host"
	"linkdrop-controlplane/pkg/middleware"
	"linkdrop-controlplane/services/provisioning"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type SendRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
}

type SendResponse struct {
	PublicKey string `json:"public_key"`
	Balance   int64  `json:"balance,string"`
}

type ClaimRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

type CreateAccountRequest struct {
	NewAccountID string `json:"new_account_id" binding:"required"`
	NewPublicKey string `json:"new_public_key" binding:"required"`
}

type CreateAccountAdvancedRequest struct {
	NewAccountID string               `json:"new_account_id" binding:"required"`
	Options      provisioning.Options `json:"options"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance,string"`
}

// Register mounts the contract methods under /v1. Caller identity is read
// from the host headers by middleware.CallContext.
func (h *Handler) Register(r gin.IRouter, contractID string) {
	v1 := r.Group("/v1", middleware.CallContext(contractID))
	v1.POST("/send", h.Send)
	v1.POST("/claim", h.Claim)
	v1.POST("/create_account_and_claim", h.CreateAccountAndClaim)
	v1.POST("/create_account", h.CreateAccount)
	v1.POST("/create_account_advanced", h.CreateAccountAdvanced)
	v1.GET("/keys/:public_key/balance", h.GetKeyBalance)
	v1.GET("/keys/:public_key", h.GetKeyInformation)
}

func callOf(c *gin.Context) host.Call {
	call, _ := host.CallFromContext(c.Request.Context())
	return call
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return false
	}
	return true
}

func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if !bind(c, &req) {
		return
	}

	balance, err := h.svc.Send(c.Request.Context(), callOf(c), req.PublicKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, SendResponse{PublicKey: req.PublicKey, Balance: balance})
}

func (h *Handler) Claim(c *gin.Context) {
	var req ClaimRequest
	if !bind(c, &req) {
		return
	}

	sub, err := h.svc.Claim(c.Request.Context(), callOf(c), req.AccountID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *Handler) CreateAccountAndClaim(c *gin.Context) {
	var req CreateAccountRequest
	if !bind(c, &req) {
		return
	}

	sub, err := h.svc.CreateAccountAndClaim(c.Request.Context(), callOf(c), req.NewAccountID, req.NewPublicKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, sub)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bind(c, &req) {
		return
	}

	sub, err := h.svc.CreateAccount(c.Request.Context(), callOf(c), req.NewAccountID, req.NewPublicKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, sub)
}

func (h *Handler) CreateAccountAdvanced(c *gin.Context) {
	var req CreateAccountAdvancedRequest
	if !bind(c, &req) {
		return
	}

	sub, err := h.svc.CreateAccountAdvanced(c.Request.Context(), callOf(c), req.NewAccountID, req.Options)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, sub)
}

func (h *Handler) GetKeyBalance(c *gin.Context) {
	balance, err := h.svc.GetKeyBalance(c.Request.Context(), c.Param("public_key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{Balance: balance})
}

// GetKeyInformation answers null for unknown keys.
func (h *Handler) GetKeyInformation(c *gin.Context) {
	info, found, err := h.svc.GetKeyInformation(c.Request.Context(), c.Param("public_key"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, nil)
		return
	}

	c.JSON(http.StatusOK, info)
}

func registerRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	h.Register(r, cfg.Linkdrop.ContractID)
}
