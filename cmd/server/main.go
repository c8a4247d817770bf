package main

import (
	"log"
	"os"

	"orvia_back_end/internal/archive"
	"orvia_back_end/internal/cache"
	"orvia_back_end/internal/config"
	"orvia_back_end/internal/database"
	"orvia_back_end/internal/handlers"
	"orvia_back_end/internal/provider"
	"orvia_back_end/internal/repository"
	"orvia_back_end/internal/routes"
	"orvia_back_end/internal/service"
	"orvia_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()

	database.ConnectDatabases()
	database.InitPreparedStatements()

	usersSession, err := database.GetUsersSession()
	if err != nil {
		log.Fatal("❌ Session users indisponible:", err)
	}
	productsSession, err := database.GetProductsSession()
	if err != nil {
		log.Fatal("❌ Session products indisponible:", err)
	}
	ordersSession, err := database.GetOrdersSession()
	if err != nil {
		log.Fatal("❌ Session orders indisponible:", err)
	}

	providers := buildProviders()

	// Repositories
	cartRepo := repository.NewScyllaCartRepository(ordersSession)
	addressRepo := repository.NewScyllaAddressRepository(usersSession)
	orderRepo := repository.NewScyllaOrderRepository(ordersSession)
	paymentRepo := repository.NewScyllaPaymentRepository(ordersSession)

	catalog := cache.NewProductCatalog(productsSession)
	locker := cache.NewRedisLocker()

	// Services
	addressSvc := service.NewAddressService(addressRepo)
	cartSvc := service.NewCartService(cartRepo, catalog, locker)
	checkoutSvc := service.NewCheckoutService(cartRepo, addressSvc, orderRepo, paymentRepo,
		catalog, locker, providers, config.ProviderTimeout(), config.MaxPaymentAttempts())
	reconcileSvc := service.NewReconcileService(paymentRepo, orderRepo,
		utils.NewEmailNotifier(), archive.NewMinioArchiver())

	r := gin.Default()
	routes.RegisterRoutes(r, routes.Handlers{
		Cart:     handlers.NewCartHandler(cartSvc),
		Checkout: handlers.NewCheckoutHandler(checkoutSvc),
		Webhook:  handlers.NewWebhookHandler(providers, reconcileSvc),
		Address:  handlers.NewAddressHandler(addressSvc),
		Order:    handlers.NewOrderHandler(orderRepo, paymentRepo),
		Payment:  handlers.NewPaymentHandler(paymentRepo),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Orvia lancé sur le port", port)
	r.Run(":" + port)
}

// buildProviders construit le registre des adapters depuis l'environnement.
// Chaque adapter porte ses propres clés : aucun état client global mutable.
func buildProviders() provider.Registry {
	var adapters []provider.Adapter

	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	adapters = append(adapters, provider.NewStripe(stripeKey, os.Getenv("STRIPE_WEBHOOK_SECRET")))
	log.Println("🔌 Provider Stripe initialisé")

	razorpayKeyID := os.Getenv("RAZORPAY_KEY_ID")
	razorpaySecret := os.Getenv("RAZORPAY_KEY_SECRET")
	if razorpayKeyID != "" && razorpaySecret != "" {
		adapters = append(adapters, provider.NewRazorpay(razorpayKeyID, razorpaySecret,
			os.Getenv("RAZORPAY_WEBHOOK_SECRET"), config.ProviderTimeout()))
		log.Println("🔌 Provider Razorpay initialisé")
	} else {
		log.Println("⚠️ Clés Razorpay absentes, provider non enregistré")
	}

	return provider.NewRegistry(adapters...)
}
