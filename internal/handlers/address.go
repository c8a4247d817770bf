package handlers

import (
	"errors"
	"net/http"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
)

type AddressHandler struct {
	addresses *service.AddressService
}

func NewAddressHandler(addresses *service.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// 🟢 GET /api/profile/default-address
func (h *AddressHandler) GetDefaultAddress(c *gin.Context) {
	userID := c.GetString("user_id")

	addr, err := h.addresses.GetDefault(c.Request.Context(), userID)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Aucune adresse enregistrée"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, addr)
}

// 🟢 GET /api/addresses
func (h *AddressHandler) ListAddresses(c *gin.Context) {
	userID := c.GetString("user_id")

	addrs, err := h.addresses.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	if addrs == nil {
		addrs = []models.Address{}
	}
	c.JSON(http.StatusOK, addrs)
}

// 🟢 POST /api/addresses
// Création hors checkout. Même normalisation + dédoublonnage : renvoyer deux
// fois les mêmes champs ne crée pas de doublon.
func (h *AddressHandler) CreateAddress(c *gin.Context) {
	userID := c.GetString("user_id")

	var input struct {
		models.AddressFields
		MakeDefault bool `json:"make_default"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	addr, err := h.addresses.ResolveOrCreate(c.Request.Context(), userID, input.AddressFields, input.MakeDefault)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, addr)
}

// 🟢 POST /api/addresses/:id/default
func (h *AddressHandler) SetDefaultAddress(c *gin.Context) {
	userID := c.GetString("user_id")
	addressID := c.Param("id")

	addrs, err := h.addresses.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	for _, addr := range addrs {
		if addr.ID.String() == addressID {
			updated, err := h.addresses.MakeDefault(c.Request.Context(), userID, addr.FieldsHash)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
				return
			}
			c.JSON(http.StatusOK, updated)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Adresse introuvable"})
}
