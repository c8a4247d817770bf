package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/provider"

	"github.com/gocql/gocql"
)

// Partition des logs d'événements sans paiement connu.
const orphanLogKey = "orphan"

type ReconcileOutcome string

const (
	OutcomeApplied        ReconcileOutcome = "applied"
	OutcomeDuplicate      ReconcileOutcome = "duplicate"
	OutcomeUnknownPayment ReconcileOutcome = "unknown_payment"
	OutcomeDropped        ReconcileOutcome = "dropped"
)

// transitions autorisées de la machine à états paiement, pilotée uniquement
// par des événements provider vérifiés, jamais par un succès déclaré client.
type transition struct {
	from, to string
}

func eventTransition(kind, status string) (transition, bool) {
	switch {
	case kind == models.TxCharge && status == models.PaymentSucceeded:
		return transition{from: models.PaymentPending, to: models.PaymentSucceeded}, true
	case kind == models.TxCharge && status == models.PaymentFailed:
		return transition{from: models.PaymentPending, to: models.PaymentFailed}, true
	case kind == models.TxRefund && status == models.PaymentSucceeded:
		return transition{from: models.PaymentSucceeded, to: models.PaymentRefunded}, true
	}
	return transition{}, false
}

// ReconcileService applique les confirmations providers au ledger, exactement
// une fois par événement distinct. Les providers livrent at-least-once et
// peuvent réordonner : la revendication d'idempotence passe AVANT toute
// transition, et la transition elle-même est un CAS sur le statut courant.
type ReconcileService struct {
	payments PaymentRepository
	orders   OrderRepository
	notifier Notifier // optionnel
	archiver Archiver // optionnel
}

func NewReconcileService(payments PaymentRepository, orders OrderRepository, notifier Notifier, archiver Archiver) *ReconcileService {
	return &ReconcileService{payments: payments, orders: orders, notifier: notifier, archiver: archiver}
}

// Apply traite un événement vérifié. L'erreur retournée est purement technique
// (stockage) : duplicata, paiement inconnu et transition hors machine sont des
// outcomes normaux, loggés et acquittés.
func (s *ReconcileService) Apply(ctx context.Context, ev *provider.VerifiedEvent) (ReconcileOutcome, error) {
	payment, err := s.resolvePayment(ctx, ev)
	if err != nil {
		return "", err
	}
	if payment == nil {
		// Jamais de création de Payment depuis un événement : la commande peut
		// ne pas être commitée (le provider course l'orchestrateur) ou l'id
		// peut être étranger
		s.payments.AppendLog(ctx, models.PaymentLog{
			ID:        gocql.TimeUUID(),
			PaymentID: orphanLogKey,
			EventType: "unknown_payment_ref",
			Level:     models.LogWarning,
			Message:   fmt.Sprintf("Événement %s (%s) pour une référence inconnue : %s", ev.EventType, ev.Provider, ev.PaymentRef),
			Data:      map[string]string{"provider": ev.Provider, "provider_tx_id": ev.ProviderTxID},
			CreatedAt: time.Now(),
		})
		log.Printf("⚠️ Référence paiement inconnue %s (%s), événement ignoré", ev.PaymentRef, ev.Provider)
		return OutcomeUnknownPayment, nil
	}

	// Revendication d'idempotence avant toute transition
	claimed, err := s.payments.ClaimProviderTx(ctx, ev.Provider, ev.ProviderTxID, payment.PaymentID)
	if err != nil {
		return "", err
	}
	if !claimed {
		s.payments.AppendLog(ctx, models.PaymentLog{
			ID:        gocql.TimeUUID(),
			PaymentID: payment.PaymentID,
			EventType: "duplicate_event",
			Level:     models.LogDebug,
			Message:   fmt.Sprintf("Relivraison de %s déjà appliquée (tx %s)", ev.EventType, ev.ProviderTxID),
			CreatedAt: time.Now(),
		})
		log.Printf("🔁 Événement %s déjà appliqué pour %s, no-op", ev.ProviderTxID, payment.PaymentID)
		return OutcomeDuplicate, nil
	}

	// À partir d'ici, tout chemin qui n'applique PAS la transition doit rendre
	// la revendication : un refund livré avant le charge est droppé aujourd'hui
	// mais doit rester applicable à sa relivraison
	tr, ok := eventTransition(ev.Kind, ev.Status)
	if !ok {
		s.releaseClaim(ctx, ev)
		return s.drop(ctx, payment, ev, "événement sans transition définie"), nil
	}

	applied, err := s.casStatus(ctx, payment, tr)
	if err != nil {
		s.releaseClaim(ctx, ev)
		return "", err
	}
	if !applied {
		s.releaseClaim(ctx, ev)
		return s.drop(ctx, payment, ev, fmt.Sprintf("transition %s→%s impossible depuis l'état courant", tr.from, tr.to)), nil
	}

	if err := s.recordTransaction(ctx, payment, ev); err != nil {
		return "", err
	}

	s.sideEffects(ctx, payment, ev, tr)

	log.Printf("✅ Paiement %s : %s → %s (tx %s, %s)", payment.PaymentID, tr.from, tr.to, ev.ProviderTxID, ev.Provider)
	return OutcomeApplied, nil
}

// releaseClaim rend la clé d'idempotence d'un événement non appliqué. Si la
// suppression échoue, la relivraison sera classée duplicata à tort : on le
// logge en erreur pour la réconciliation manuelle.
func (s *ReconcileService) releaseClaim(ctx context.Context, ev *provider.VerifiedEvent) {
	if err := s.payments.ReleaseProviderTx(ctx, ev.Provider, ev.ProviderTxID); err != nil {
		log.Printf("❌ Libération de la revendication %s (%s) échouée: %v", ev.ProviderTxID, ev.Provider, err)
	}
}

// resolvePayment corrèle l'événement : d'abord par référence provider, puis
// par identifiant local.
func (s *ReconcileService) resolvePayment(ctx context.Context, ev *provider.VerifiedEvent) (*models.Payment, error) {
	payment, err := s.payments.GetByProviderRef(ctx, ev.Provider, ev.PaymentRef)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payment, err = s.payments.GetByID(ctx, ev.PaymentRef)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Dernier recours : l'identifiant local renvoyé dans les métadonnées,
	// pour le webhook qui double l'enregistrement de la référence provider
	if ev.LocalRef != "" {
		payment, err = s.payments.GetByID(ctx, ev.LocalRef)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// casStatus linéarise la transition : LWT IF status = from, avec relecture en
// cas de contention. Les états terminaux ne sont jamais quittés.
func (s *ReconcileService) casStatus(ctx context.Context, payment *models.Payment, tr transition) (bool, error) {
	var completedAt *time.Time
	if tr.to == models.PaymentSucceeded {
		now := time.Now()
		completedAt = &now
	}

	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.payments.CompareAndSwapStatus(ctx, payment.PaymentID, tr.from, tr.to, completedAt)
		if err != nil {
			return false, err
		}
		if ok {
			payment.Status = tr.to
			payment.CompletedAt = completedAt
			return true, nil
		}

		current, err := s.payments.GetByID(ctx, payment.PaymentID)
		if err != nil {
			return false, err
		}
		if current.Status != tr.from {
			// L'état a bougé sous nos pieds : la transition ne s'applique plus
			payment.Status = current.Status
			return false, nil
		}
	}
	return false, nil
}

func (s *ReconcileService) recordTransaction(ctx context.Context, payment *models.Payment, ev *provider.VerifiedEvent) error {
	amount := ev.Amount
	if amount == 0 {
		amount = payment.Amount
	}
	txStatus := models.PaymentSucceeded
	if ev.Status == models.PaymentFailed {
		txStatus = models.PaymentFailed
	}
	return s.payments.InsertTransaction(ctx, models.Transaction{
		ID:           gocql.TimeUUID(),
		PaymentID:    payment.PaymentID,
		ProviderTxID: ev.ProviderTxID,
		Kind:         ev.Kind,
		Amount:       amount,
		Status:       txStatus,
		RawPayload:   string(ev.Raw),
		CreatedAt:    time.Now(),
	})
}

// sideEffects : archives, logs, email, statut commande. Tout est best-effort,
// l'état du ledger est déjà commité.
func (s *ReconcileService) sideEffects(ctx context.Context, payment *models.Payment, ev *provider.VerifiedEvent, tr transition) {
	if s.archiver != nil && len(ev.Raw) > 0 {
		if err := s.archiver.Archive(ctx, ev.Provider, ev.ProviderTxID, ev.Raw); err != nil {
			log.Printf("⚠️ Archivage du payload %s échoué: %v", ev.ProviderTxID, err)
		}
	}

	level := models.LogInfo
	eventType := "payment_succeeded"
	switch tr.to {
	case models.PaymentFailed:
		level = models.LogError
		eventType = "payment_failed"
	case models.PaymentRefunded:
		eventType = "payment_refunded"
	}
	s.payments.AppendLog(ctx, models.PaymentLog{
		ID:        gocql.TimeUUID(),
		PaymentID: payment.PaymentID,
		EventType: eventType,
		Level:     level,
		Message:   fmt.Sprintf("Événement %s appliqué (tx %s)", ev.EventType, ev.ProviderTxID),
		Data:      map[string]string{"provider": ev.Provider, "provider_tx_id": ev.ProviderTxID},
		CreatedAt: time.Now(),
	})

	switch tr.to {
	case models.PaymentSucceeded:
		// La commande est née en processing : on rafraîchit juste updated_at,
		// le fulfillment reste une affaire d'admin
		if err := s.orders.Touch(ctx, payment.OrderID); err != nil {
			log.Printf("⚠️ Touch commande %s échoué: %v", payment.OrderID, err)
		}
		// Corrélation supplémentaire : les remboursements Razorpay référencent
		// l'id de paiement provider, pas l'order
		if ev.ProviderTxID != "" && ev.ProviderTxID != ev.PaymentRef {
			if err := s.payments.IndexProviderRef(ctx, ev.Provider, ev.ProviderTxID, payment.PaymentID); err != nil {
				log.Printf("⚠️ Indexation ref provider %s échouée: %v", ev.ProviderTxID, err)
			}
		}
		if s.notifier != nil && payment.CustomerEmail != "" {
			order, err := s.orders.GetByID(ctx, payment.OrderID)
			if err != nil {
				log.Printf("⚠️ Commande %s introuvable pour l'email de confirmation: %v", payment.OrderID, err)
				return
			}
			items, _ := s.orders.Items(ctx, payment.OrderID)
			s.notifier.OrderPaid(*order, items, *payment)
		}

	case models.PaymentRefunded:
		if err := s.orders.UpdateStatus(ctx, payment.OrderID, models.OrderRefunded); err != nil {
			log.Printf("⚠️ Statut refunded non posé sur la commande %s: %v", payment.OrderID, err)
		}
	}
}

func (s *ReconcileService) drop(ctx context.Context, payment *models.Payment, ev *provider.VerifiedEvent, reason string) ReconcileOutcome {
	s.payments.AppendLog(ctx, models.PaymentLog{
		ID:        gocql.TimeUUID(),
		PaymentID: payment.PaymentID,
		EventType: "event_dropped",
		Level:     models.LogWarning,
		Message:   fmt.Sprintf("%s : %s (tx %s, statut courant %s)", reason, ev.EventType, ev.ProviderTxID, payment.Status),
		CreatedAt: time.Now(),
	})
	log.Printf("⚠️ Événement %s ignoré pour %s : %s", ev.EventType, payment.PaymentID, reason)
	return OutcomeDropped
}
