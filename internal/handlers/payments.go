package handlers

import (
	"errors"
	"net/http"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments service.PaymentRepository
}

func NewPaymentHandler(payments service.PaymentRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// 🧾 GET /api/payments/:id
// Détail d'un paiement : transactions appliquées + derniers logs.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID := c.GetString("user_id")
	role := c.GetString("role")
	paymentID := c.Param("id")

	payment, err := h.payments.GetByID(c.Request.Context(), paymentID)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Paiement introuvable"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if payment.UserID != userID && role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Accès refusé"})
		return
	}

	txs, err := h.payments.Transactions(c.Request.Context(), paymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	logs, err := h.payments.Logs(c.Request.Context(), paymentID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment, "transactions": txs, "logs": logs})
}

// 🧾 GET /api/payments (admin)
// Liste filtrable par statut et provider.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	statusFilter := c.Query("status")
	providerFilter := c.Query("provider")

	if statusFilter != "" {
		valid := map[string]bool{
			models.PaymentPending: true, models.PaymentProcessing: true,
			models.PaymentSucceeded: true, models.PaymentFailed: true,
			models.PaymentRefunded: true, models.PaymentCancelled: true,
		}
		if !valid[statusFilter] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Statut inconnu : " + statusFilter})
			return
		}
	}

	payments, err := h.payments.List(c.Request.Context(), statusFilter, providerFilter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	c.JSON(http.StatusOK, payments)
}

// 📊 GET /api/payments/dashboard (admin)
// Agrégats simples par statut et provider.
func (h *PaymentHandler) Dashboard(c *gin.Context) {
	payments, err := h.payments.List(c.Request.Context(), "", "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	byStatus := map[string]int{}
	byProvider := map[string]int{}
	var volume float64
	for _, p := range payments {
		byStatus[p.Status]++
		byProvider[p.Provider]++
		if p.Status == models.PaymentSucceeded {
			volume += p.Amount
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       len(payments),
		"by_status":   byStatus,
		"by_provider": byProvider,
		"volume":      volume,
	})
}
