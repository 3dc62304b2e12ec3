package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/service"
)

type SettlementHandler struct {
	engine *service.Engine
}

func NewSettlementHandler(engine *service.Engine) *SettlementHandler {
	return &SettlementHandler{engine: engine}
}

// Settle is the buyLazyMint entry point.
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req model.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	order, err := req.Order.ToOrder()
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid signature hex"))
		return
	}
	supplied, err := model.ParseWei(req.SuppliedValue)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	receipt, err := h.engine.BuyLazyMint(c.Request.Context(), order, signature, supplied)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// Digest returns the typed-data digest an external signer must sign.
func (h *SettlementHandler) Digest(c *gin.Context) {
	var req model.OrderDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	order, err := req.ToOrder()
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	hasher := h.engine.Hasher()
	c.JSON(http.StatusOK, gin.H{
		"digest":           hasher.OrderDigest(order).Hex(),
		"domain_separator": hasher.DomainSeparator().Hex(),
	})
}

func (h *SettlementHandler) GetReceipt(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(apperrors.NewInvalidRequest("receipt id is required"))
		return
	}

	receipt, err := h.engine.GetReceipt(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
