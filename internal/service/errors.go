package service

import (
	"errors"
	"fmt"
)

// Erreurs métier exportées (les handlers les traduisent en statuts HTTP)
var (
	ErrNotFound            = errors.New("ressource introuvable")
	ErrEmptyBasket         = errors.New("panier vide")
	ErrOutOfStock          = errors.New("stock insuffisant")
	ErrPriceMismatch       = errors.New("le total client diverge du total recalculé serveur")
	ErrProviderUnavailable = errors.New("provider de paiement injoignable")
	ErrProviderRejected    = errors.New("paiement refusé par le provider")
	ErrSignatureInvalid    = errors.New("signature invalide")
	ErrDuplicateEvent      = errors.New("événement provider déjà appliqué")
	ErrCheckoutLocked      = errors.New("un checkout est déjà en cours pour cet utilisateur")
	ErrTooManyAttempts     = errors.New("nombre maximum de tentatives de paiement atteint")
	ErrForbidden           = errors.New("accès refusé")
)

// ValidationError : entrée invalide, aucun état modifié.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("champ %s invalide : %s", e.Field, e.Reason)
}

// PaymentInitError signale qu'une commande a bien été enregistrée mais que
// l'initiation du paiement a échoué. Le paiement reste réglable via
// retry-payment, le checkout ne doit PAS être rejoué.
type PaymentInitError struct {
	OrderNumber string
	PaymentID   string
	Cause       error
}

func (e *PaymentInitError) Error() string {
	return fmt.Sprintf("commande %s enregistrée mais paiement non initié : %v", e.OrderNumber, e.Cause)
}

func (e *PaymentInitError) Unwrap() error { return e.Cause }
