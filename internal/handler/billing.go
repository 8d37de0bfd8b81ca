package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/middleware"
)

// CheckoutStarter is the payment collaborator. The real implementation
// wraps the payment provider's SDK; this service only hands the resolved
// identity over and relays the checkout URL back.
type CheckoutStarter interface {
	CreateCheckoutSession(ctx context.Context, userID, email, priceID string) (string, error)
}

// BillingHandler exposes the checkout handoff. It runs behind
// AuthenticateForPayment so unverified accounts can still pay.
type BillingHandler struct {
	Checkout CheckoutStarter
}

func NewBillingHandler(checkout CheckoutStarter) *BillingHandler {
	return &BillingHandler{Checkout: checkout}
}

type checkoutReq struct {
	PriceID string `json:"priceId"`
}

// CreateCheckoutSession asks the collaborator for a checkout URL.
func (h *BillingHandler) CreateCheckoutSession(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Checkout == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "checkout is not configured"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil || req.PriceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "priceId required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	url, err := h.Checkout.CreateCheckoutSession(ctx, ident.ID, ident.Email, req.PriceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create checkout session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}
