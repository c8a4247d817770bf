package handlers

import (
	"errors"
	"net/http"

	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// 🟢 GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := c.GetString("user_id")

	cart, err := h.carts.Snapshot(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🟢 POST /api/cart/add
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID := c.GetString("user_id")

	var input struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	cart, err := h.carts.Add(c.Request.Context(), userID, input.ProductID, input.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🟢 PATCH /api/cart/items/:id
// Une ligne de panier est identifiée par son product_id. Quantité ≤ 0 supprime la ligne.
func (h *CartHandler) UpdateCart(c *gin.Context) {
	userID := c.GetString("user_id")
	productID := c.Param("id")

	var input struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	cart, deleted, err := h.carts.Update(c.Request.Context(), userID, productID, input.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if deleted {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// 🟢 DELETE /api/cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID := c.GetString("user_id")
	productID := c.Param("id")

	if err := h.carts.Remove(c.Request.Context(), userID, productID); err != nil {
		respondCartError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondCartError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
	case errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock insuffisant"})
	case errors.Is(err, service.ErrCheckoutLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Une autre opération est en cours, réessayez"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}
