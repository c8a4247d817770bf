package routes

import (
	"os"
	"strings"
	"time"

	"orvia_back_end/internal/handlers"
	"orvia_back_end/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers regroupe les handlers construits dans main.
type Handlers struct {
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Webhook  *handlers.WebhookHandler
	Address  *handlers.AddressHandler
	Order    *handlers.OrderHandler
	Payment  *handlers.PaymentHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	allowedOrigins := []string{"http://localhost:3000"}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	api.Use(middleware.APIRateLimit())

	// Webhooks providers : pas de JWT, l'authentification est la signature
	api.POST("/payments/webhook/:provider", h.Webhook.HandleWebhook)

	auth := api.Group("")
	auth.Use(middleware.AuthRequired())
	{
		// Panier
		auth.GET("/cart", h.Cart.GetCart)
		auth.POST("/cart/add", h.Cart.AddToCart)
		auth.PATCH("/cart/items/:id", h.Cart.UpdateCart)
		auth.DELETE("/cart/items/:id", h.Cart.RemoveFromCart)

		// Checkout + reprise de paiement
		auth.POST("/checkout", middleware.CheckoutRateLimit(), h.Checkout.Checkout)
		auth.POST("/checkout/:orderId/retry-payment", middleware.CheckoutRateLimit(), h.Checkout.RetryPayment)

		// Retour client signé (modèle order+signature)
		auth.POST("/payments/verify/:provider", h.Webhook.VerifyClientReturn)

		// Adresses
		auth.GET("/profile/default-address", h.Address.GetDefaultAddress)
		auth.GET("/addresses", h.Address.ListAddresses)
		auth.POST("/addresses", h.Address.CreateAddress)
		auth.POST("/addresses/:id/default", h.Address.SetDefaultAddress)

		// Commandes
		auth.GET("/orders", h.Order.ListOrders)
		auth.GET("/orders/:id", h.Order.GetOrder)

		// Paiements
		auth.GET("/payments/:id", h.Payment.GetPayment)
	}

	admin := api.Group("")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.POST("/orders/:id/status", h.Order.UpdateOrderStatus)
		admin.GET("/payments", h.Payment.ListPayments)
		admin.GET("/payments/dashboard", h.Payment.Dashboard)
	}
}
