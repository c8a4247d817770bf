package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func Load() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
}

// ProviderTimeout retourne le timeout des appels sortants vers les providers.
func ProviderTimeout() time.Duration {
	if s := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 10 * time.Second
}

// MaxPaymentAttempts retourne le nombre max de tentatives de paiement par
// commande. 0 = illimité.
func MaxPaymentAttempts() int {
	if s := os.Getenv("CHECKOUT_MAX_ATTEMPTS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 5
}
