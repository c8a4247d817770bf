package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"orvia_back_end/internal/provider"
	"orvia_back_end/internal/service"

	"github.com/gin-gonic/gin"
)

// Taille maximale d'un payload webhook accepté.
const maxWebhookBody = 65536

// En-têtes de signature par provider.
var signatureHeaders = map[string]string{
	"stripe":   "Stripe-Signature",
	"razorpay": "X-Razorpay-Signature",
}

type WebhookHandler struct {
	providers provider.Registry
	reconcile *service.ReconcileService
}

func NewWebhookHandler(providers provider.Registry, reconcile *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{providers: providers, reconcile: reconcile}
}

// 🔔 POST /api/payments/webhook/:provider
// Réception des événements asynchrones. 400 uniquement quand la signature est
// invalide : duplicatas, références inconnues et types ignorés sont acquittés
// en 200 pour que le provider arrête de relivrer.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	providerName := c.Param("provider")

	adapter, ok := h.providers.Get(providerName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider inconnu"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload illisible"})
		return
	}

	signature := c.GetHeader(signatureHeaders[providerName])

	event, err := adapter.Verify(body, signature)
	if err != nil {
		if errors.Is(err, provider.ErrEventIgnored) {
			// Type non géré : on acquitte sans rien faire
			c.JSON(http.StatusOK, gin.H{"received": true, "status": "ignored"})
			return
		}
		log.Printf("❌ Signature webhook %s invalide: %v", providerName, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
		return
	}

	outcome, err := h.reconcile.Apply(c.Request.Context(), event)
	if err != nil {
		log.Printf("❌ Réconciliation %s échouée: %v", event.ProviderTxID, err)
		// 500 : le provider relivrera, l'idempotence absorbera le doublon
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur de réconciliation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "status": string(outcome)})
}

// ✅ POST /api/payments/verify/:provider
// Vérification synchrone du triplet signé soumis par le client (modèle
// order+signature). Même pipeline de réconciliation que les webhooks : le
// retour client n'est jamais cru sur parole, seulement sa signature.
func (h *WebhookHandler) VerifyClientReturn(c *gin.Context) {
	providerName := c.Param("provider")

	adapter, ok := h.providers.Get(providerName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider inconnu"})
		return
	}

	verifier, ok := adapter.(provider.ClientVerifier)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ce provider ne supporte pas la vérification côté client"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload illisible"})
		return
	}

	event, err := verifier.VerifyClient(body)
	if err != nil {
		log.Printf("❌ Vérification client %s refusée: %v", providerName, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
		return
	}

	outcome, err := h.reconcile.Apply(c.Request.Context(), event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur de réconciliation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true, "status": string(outcome)})
}
