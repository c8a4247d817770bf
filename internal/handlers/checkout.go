package handlers

import (
	"errors"
	"net/http"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// 💳 POST /api/checkout
// Transition panier → commande + initiation du paiement provider.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID := c.GetString("user_id")
	email, _ := c.Get("email")
	emailStr, _ := email.(string)

	var input struct {
		Shipping      models.AddressFields `json:"shipping" binding:"required"`
		MakeDefault   bool                 `json:"make_default"`
		Provider      string               `json:"provider" binding:"required"`
		ClientTotal   float64              `json:"client_total" binding:"required"`
		CustomerName  string               `json:"customer_name"`
		CustomerPhone string               `json:"customer_phone"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), userID, emailStr, service.CheckoutRequest{
		Shipping:      input.Shipping,
		MakeDefault:   input.MakeDefault,
		Provider:      input.Provider,
		ClientTotal:   input.ClientTotal,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":      result.OrderID.String(),
		"order_number":  result.OrderNumber,
		"payment_id":    result.PaymentID,
		"provider":      result.Provider,
		"amount":        result.Amount,
		"currency":      result.Currency,
		"client_secret": result.ClientSecret,
		"extra":         result.Extra,
	})
}

// 🔁 POST /api/checkout/:orderId/retry-payment
// Nouvelle tentative de paiement sur une commande enregistrée mais impayée.
func (h *CheckoutHandler) RetryPayment(c *gin.Context) {
	userID := c.GetString("user_id")

	orderID, err := gocql.ParseUUID(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant de commande invalide"})
		return
	}

	var input struct {
		Provider string `json:"provider" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	result, err := h.checkout.RetryPayment(c.Request.Context(), userID, orderID, input.Provider)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":      result.OrderID.String(),
		"order_number":  result.OrderNumber,
		"payment_id":    result.PaymentID,
		"provider":      result.Provider,
		"amount":        result.Amount,
		"currency":      result.Currency,
		"client_secret": result.ClientSecret,
		"extra":         result.Extra,
	})
}

func respondCheckoutError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	var initErr *service.PaymentInitError

	switch {
	case errors.As(err, &initErr):
		// La commande est bien enregistrée : le client NE DOIT PAS rejouer le
		// checkout, seulement retenter le paiement
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           "Commande enregistrée mais paiement non initié",
			"order_number":    initErr.OrderNumber,
			"payment_id":      initErr.PaymentID,
			"payment_pending": !errors.Is(err, service.ErrProviderRejected),
			"retryable":       true,
		})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, service.ErrEmptyBasket):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Panier vide"})
	case errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock insuffisant"})
	case errors.Is(err, service.ErrPriceMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Le total affiché ne correspond plus aux prix courants, rechargez votre panier"})
	case errors.Is(err, service.ErrCheckoutLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Un checkout est déjà en cours"})
	case errors.Is(err, service.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Nombre maximum de tentatives de paiement atteint"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Accès refusé"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}
