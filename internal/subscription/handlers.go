package subscription

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for subscription and quota operations.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a new subscription handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// RegisterRoutes sets up subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:userId/subscription", h.GetSubscription)
	r.GET("/users/:userId/quota", h.GetQuota)
	r.POST("/users/:userId/subscription", h.Purchase)
	r.POST("/users/:userId/subscription/upgrade", h.Upgrade)
	r.DELETE("/users/:userId/subscription", h.Cancel)
	r.POST("/subscriptions/:id/activate", h.Activate)
	r.POST("/users/:userId/usage/listings", h.ConsumeListing)
	r.POST("/users/:userId/usage/ads", h.ConsumeAd)
}

// GetSubscription handles GET /v1/users/:userId/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.tracker.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// GetQuota handles GET /v1/users/:userId/quota
func (h *Handler) GetQuota(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	listings, err := h.tracker.CanCreateListing(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	ads, err := h.tracker.CanPostAd(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"ads":      ads,
	})
}

// PurchaseRequest is the body for POST /v1/users/:userId/subscription.
type PurchaseRequest struct {
	Plan Plan `json:"plan" binding:"required"`
}

// Purchase handles POST /v1/users/:userId/subscription
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "plan is required",
		})
		return
	}

	sub, err := h.tracker.Purchase(c.Request.Context(), c.Param("userId"), req.Plan)
	if err != nil {
		if errors.Is(err, ErrInvalidPlan) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_plan",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// Upgrade handles POST /v1/users/:userId/subscription/upgrade
func (h *Handler) Upgrade(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "plan is required",
		})
		return
	}

	sub, due, err := h.tracker.Upgrade(c.Request.Context(), c.Param("userId"), req.Plan)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, ErrInvalidPlan):
			status = http.StatusBadRequest
			code = "invalid_plan"
		case errors.Is(err, ErrNotAnUpgrade):
			status = http.StatusBadRequest
			code = "not_an_upgrade"
		case errors.Is(err, ErrSubscriptionNotFound):
			status = http.StatusNotFound
			code = "not_found"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription": sub,
		"amountDue":    due,
	})
}

// Cancel handles DELETE /v1/users/:userId/subscription
func (h *Handler) Cancel(c *gin.Context) {
	sub, err := h.tracker.Cancel(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No active subscription",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// Activate handles POST /v1/subscriptions/:id/activate
func (h *Handler) Activate(c *gin.Context) {
	sub, err := h.tracker.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Subscription not found",
			})
			return
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// ConsumeListing handles POST /v1/users/:userId/usage/listings
func (h *Handler) ConsumeListing(c *gin.Context) {
	h.consume(c, UsageListings)
}

// ConsumeAd handles POST /v1/users/:userId/usage/ads
func (h *Handler) ConsumeAd(c *gin.Context) {
	h.consume(c, UsageAds)
}

func (h *Handler) consume(c *gin.Context, kind UsageKind) {
	userID := c.Param("userId")

	var err error
	if kind == UsageAds {
		err = h.tracker.IncrementAdUsage(c.Request.Context(), userID)
	} else {
		err = h.tracker.IncrementListingUsage(c.Request.Context(), userID)
	}
	if err != nil {
		var qe *QuotaError
		if errors.As(err, &qe) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "quota_exceeded",
				"message": qe.Error(),
				"used":    qe.Used,
				"limit":   qe.Limit,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"consumed": string(kind)})
}
