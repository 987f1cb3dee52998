package escrow

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bechdo/bechdo/internal/ledger"
	"github.com/bechdo/bechdo/internal/payments"
	"github.com/bechdo/bechdo/internal/validation"
)

// Handler provides HTTP endpoints for the purchase flow.
type Handler struct {
	service *Service
}

// NewHandler creates a new escrow handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up purchase routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.InitiatePurchase)
	r.POST("/transactions/verify", h.VerifyAndEscrow)
	r.GET("/transactions/:id", h.GetTransaction)
	r.GET("/users/:userId/transactions", h.ListTransactions)
	r.POST("/transactions/:id/release", h.ReleaseEscrow)
	r.POST("/transactions/:id/refund", h.ProcessRefund)
	r.POST("/transactions/:id/dispute", h.RaiseDispute)
	r.POST("/transactions/:id/resolve", h.ResolveDispute)
	r.POST("/transactions/:id/cancel", h.CancelPurchase)
}

// InitiatePurchase handles POST /v1/transactions
func (h *Handler) InitiatePurchase(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("buyerId", req.BuyerID),
		validation.Required("listingId", req.ListingID),
		validation.ValidAmount("finalPrice", req.FinalPrice),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	tx, order, err := h.service.InitiatePurchase(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrListingUnavailable):
			status = http.StatusConflict
			code = "listing_unavailable"
		case errors.Is(err, ErrSelfPurchase):
			status = http.StatusBadRequest
			code = "self_purchase"
		case errors.Is(err, ErrUnknownGateway):
			status = http.StatusBadRequest
			code = "unknown_gateway"
		case errors.Is(err, payments.ErrGatewayUnavailable):
			status = http.StatusBadGateway
			code = "gateway_unavailable"
		case errors.Is(err, ledger.ErrInvalidAmount):
			status = http.StatusBadRequest
			code = "invalid_amount"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction": tx,
		"order":       order,
	})
}

// VerifyAndEscrow handles POST /v1/transactions/verify
func (h *Handler) VerifyAndEscrow(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "transactionId, orderId, paymentId and signature are required",
		})
		return
	}

	tx, err := h.service.VerifyAndEscrow(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, ErrPaymentVerificationFailed):
			status = http.StatusBadRequest
			code = "verification_failed"
		case errors.Is(err, ledger.ErrInvalidStateTransition):
			status = http.StatusConflict
			code = "invalid_state"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// GetTransaction handles GET /v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id := c.Param("id")
	if !validation.IsValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction not found",
		})
		return
	}

	tx, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Transaction not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ListTransactions handles GET /v1/users/:userId/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Param("userId")
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	txns, nextCursor, hasMore, err := h.service.ListByUser(c.Request.Context(), userID, c.Query("cursor"), limit)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Invalid pagination cursor",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	resp := gin.H{
		"transactions": txns,
		"count":        len(txns),
		"hasMore":      hasMore,
	}
	if nextCursor != "" {
		resp["nextCursor"] = nextCursor
	}
	c.JSON(http.StatusOK, resp)
}

// ReleaseRequest names who triggered a manual release.
type ReleaseRequest struct {
	ReleasedBy string `json:"releasedBy" binding:"required"`
}

// ReleaseEscrow handles POST /v1/transactions/:id/release
func (h *Handler) ReleaseEscrow(c *gin.Context) {
	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "releasedBy is required",
		})
		return
	}

	tx, err := h.service.ReleaseEscrow(c.Request.Context(), c.Param("id"), req.ReleasedBy)
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ProcessRefund handles POST /v1/transactions/:id/refund
func (h *Handler) ProcessRefund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "requestedBy and reason are required",
		})
		return
	}

	tx, err := h.service.ProcessRefund(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		if errors.Is(err, payments.ErrRefundFailed) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "refund_failed",
				"message": err.Error(),
			})
			return
		}
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// RaiseDispute handles POST /v1/transactions/:id/dispute
func (h *Handler) RaiseDispute(c *gin.Context) {
	var req DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "raisedBy and reason are required",
		})
		return
	}

	tx, err := h.service.RaiseDispute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ResolveDispute handles POST /v1/transactions/:id/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "resolution is required (release or refund)",
		})
		return
	}

	tx, err := h.service.ResolveDispute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// CancelRequest names who cancelled the pending purchase.
type CancelRequest struct {
	CancelledBy string `json:"cancelledBy" binding:"required"`
}

// CancelPurchase handles POST /v1/transactions/:id/cancel
func (h *Handler) CancelPurchase(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "cancelledBy is required",
		})
		return
	}

	tx, err := h.service.CancelPurchase(c.Request.Context(), c.Param("id"), req.CancelledBy)
	if err != nil {
		h.writeTransitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *Handler) writeTransitionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
		code = "unauthorized"
	case errors.Is(err, ledger.ErrInvalidStateTransition), errors.Is(err, ledger.ErrStateConflict):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
		code = "invalid_amount"
	case errors.Is(err, payments.ErrGatewayUnavailable):
		status = http.StatusBadGateway
		code = "gateway_unavailable"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
