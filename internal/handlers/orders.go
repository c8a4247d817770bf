package handlers

import (
	"errors"
	"net/http"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

type OrderHandler struct {
	orders   service.OrderRepository
	payments service.PaymentRepository
}

func NewOrderHandler(orders service.OrderRepository, payments service.PaymentRepository) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

// 🟢 GET /api/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := c.GetString("user_id")

	orders, err := h.orders.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// 🟢 GET /api/orders/:id
// Détail commande : lignes figées + historique des tentatives de paiement.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := c.GetString("user_id")
	role := c.GetString("role")

	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant de commande invalide"})
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), orderID)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if order.UserID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Accès refusé"})
		return
	}

	items, err := h.orders.Items(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	order.Items = items

	attempts, err := h.payments.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "payments": attempts})
}

// 🟢 POST /api/orders/:id/status (admin)
// Statut de fulfillment uniquement. Les statuts de paiement ne passent JAMAIS
// par ici : seuls les événements providers vérifiés les font bouger.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant de commande invalide"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	if !models.OrderStatuses[input.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut inconnu : " + input.Status})
		return
	}

	if _, err := h.orders.GetByID(c.Request.Context(), orderID); errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	if err := h.orders.UpdateStatus(c.Request.Context(), orderID, input.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Statut mis à jour", "status": input.Status})
}
