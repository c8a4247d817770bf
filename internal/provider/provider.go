package provider

import (
	"context"
	"errors"

	"orvia_back_end/internal/models"
)

// Erreurs de classification des échecs provider.
// Unavailable (réseau, timeout) ≠ Rejected (refus explicite) : le premier laisse
// le paiement pending, le second le termine en failed.
var (
	ErrUnavailable  = errors.New("provider injoignable")
	ErrRejected     = errors.New("requête refusée par le provider")
	ErrBadSignature = errors.New("signature de l'événement invalide")
	ErrEventIgnored = errors.New("type d'événement non géré")
)

// StartResult est le résultat de la création de l'objet de paiement côté provider.
type StartResult struct {
	ProviderRef  string            // identifiant de corrélation (intent Stripe, order Razorpay)
	ClientSecret string            // secret côté client, vide si le provider n'en a pas
	Extra        map[string]string // infos supplémentaires à exposer au front
}

// VerifiedEvent est une confirmation authentifiée, prête pour la réconciliation.
type VerifiedEvent struct {
	Provider     string
	EventType    string  // type brut provider, pour les logs
	Kind         string  // models.TxCharge / models.TxRefund
	Status       string  // models.PaymentSucceeded / models.PaymentFailed
	ProviderTxID string  // clé d'idempotence avec Provider
	PaymentRef   string  // provider_ref ou payment_id local, selon le provider
	LocalRef     string  // payment_id local porté par les métadonnées, si le provider le renvoie
	Amount       float64 // montant rapporté par le provider (unité principale)
	Raw          []byte
}

// Adapter est l'interface commune à tous les providers de paiement.
// Verify est pure : authentification cryptographique + parsing, aucune mutation.
type Adapter interface {
	Name() string
	Start(ctx context.Context, order models.Order, payment models.Payment) (*StartResult, error)
	Verify(payload []byte, signature string) (*VerifiedEvent, error)
}

// ClientVerifier est implémentée par les providers dont le client soumet
// lui-même un triplet signé (modèle order+signature).
type ClientVerifier interface {
	VerifyClient(payload []byte) (*VerifiedEvent, error)
}

// Registry référence les adapters construits au démarrage depuis la config.
// Pas d'état client global mutable : chaque adapter porte ses propres handles.
type Registry map[string]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Name()] = a
	}
	return r
}

func (r Registry) Get(name string) (Adapter, bool) {
	a, ok := r[name]
	return a, ok
}
