package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/registry"
)

// AdminHandler owns every registry mutation. The settlement engine only
// ever sees the read-only view.
type AdminHandler struct {
	registry *registry.Registry
}

func NewAdminHandler(reg *registry.Registry) *AdminHandler {
	return &AdminHandler{registry: reg}
}

type feeRequest struct {
	RateBps int64 `json:"rate_bps" binding:"required"`
}

func (h *AdminHandler) SetFee(c *gin.Context) {
	var req feeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.registry.SetFeeRateBps(req.RateBps); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate_bps": req.RateBps})
}

func (h *AdminHandler) Pause(c *gin.Context) {
	h.registry.SetPaused(true)
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *AdminHandler) Unpause(c *gin.Context) {
	h.registry.SetPaused(false)
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *AdminHandler) Ban(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetBanned(addr, true) })
}

func (h *AdminHandler) Unban(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetBanned(addr, false) })
}

func (h *AdminHandler) AddCollection(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetCollection(addr, true) })
}

func (h *AdminHandler) RemoveCollection(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetCollection(addr, false) })
}

func (h *AdminHandler) AddPaymentToken(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetPaymentToken(addr, true) })
}

func (h *AdminHandler) RemovePaymentToken(c *gin.Context) {
	h.setAddressFlag(c, func(addr common.Address) { h.registry.SetPaymentToken(addr, false) })
}

func (h *AdminHandler) setAddressFlag(c *gin.Context, apply func(common.Address)) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.NewInvalidRequest("invalid address"))
		return
	}
	apply(common.HexToAddress(raw))
	c.JSON(http.StatusOK, gin.H{"address": common.HexToAddress(raw).Hex()})
}
