package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"orvia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// AddressService trouve ou crée une adresse de livraison réutilisable.
// Le dédoublonnage passe par un hash déterministe des champs normalisés :
// deux requêtes concurrentes « introuvable → création » convergent sur la même
// clé et le LWT ne laisse passer qu'une seule insertion.
type AddressService struct {
	repo AddressRepository
}

func NewAddressService(repo AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

// normalizeField réduit les espaces et la casse pour le hachage.
func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FieldsHash calcule la clé de dédoublonnage d'un jeu de champs d'adresse.
func FieldsHash(f models.AddressFields) string {
	h := sha256.New()
	for _, part := range []string{
		normalizeField(f.RecipientName),
		normalizeField(f.Phone),
		normalizeField(f.Street),
		normalizeField(f.City),
		normalizeField(f.Region),
		normalizeField(f.PostalCode),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateShippingFields vérifie présence et format avant de toucher au stockage.
func ValidateShippingFields(f models.AddressFields) error {
	checks := []struct {
		field, value string
	}{
		{"recipient_name", f.RecipientName},
		{"phone", f.Phone},
		{"street", f.Street},
		{"city", f.City},
		{"region", f.Region},
	}
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			return &ValidationError{Field: c.field, Reason: "requis"}
		}
	}

	pc := strings.TrimSpace(f.PostalCode)
	if len(pc) < 5 {
		return &ValidationError{Field: "postal_code", Reason: "au moins 5 chiffres"}
	}
	for _, r := range pc {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "postal_code", Reason: "chiffres uniquement"}
		}
	}
	return nil
}

// ResolveOrCreate retrouve l'adresse correspondant exactement aux champs, ou la
// crée. Si makeDefault est vrai, le pointeur de défaut bascule sur elle :
// l'upsert d'une ligne unique remplace le clear-then-set, donc deux checkouts
// concurrents ne peuvent jamais laisser deux défauts.
func (s *AddressService) ResolveOrCreate(ctx context.Context, userID string, fields models.AddressFields, makeDefault bool) (*models.Address, error) {
	if err := ValidateShippingFields(fields); err != nil {
		return nil, err
	}

	hash := FieldsHash(fields)

	addr, err := s.repo.FindByHash(ctx, userID, hash)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if addr == nil {
		candidate := models.Address{
			ID:            gocql.TimeUUID(),
			UserID:        userID,
			RecipientName: strings.TrimSpace(fields.RecipientName),
			Phone:         strings.TrimSpace(fields.Phone),
			Street:        strings.TrimSpace(fields.Street),
			City:          strings.TrimSpace(fields.City),
			Region:        strings.TrimSpace(fields.Region),
			PostalCode:    strings.TrimSpace(fields.PostalCode),
			FieldsHash:    hash,
			CreatedAt:     time.Now(),
		}
		// Le perdant de la course adopte la ligne gagnante
		addr, err = s.repo.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return nil, err
		}
	}

	if makeDefault {
		if err := s.repo.SetDefault(ctx, userID, addr.FieldsHash, addr.ID); err != nil {
			return nil, err
		}
		addr.IsDefault = true
	}

	return addr, nil
}

// GetDefault retourne l'adresse marquée par défaut, sinon la plus récente,
// sinon ErrNotFound si l'utilisateur n'a aucune adresse.
func (s *AddressService) GetDefault(ctx context.Context, userID string) (*models.Address, error) {
	addr, err := s.repo.DefaultAddress(ctx, userID)
	if err == nil && addr != nil {
		addr.IsDefault = true
		return addr, nil
	}
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	return s.repo.LatestAddress(ctx, userID)
}

// MakeDefault bascule le défaut sur une adresse existante de l'utilisateur.
func (s *AddressService) MakeDefault(ctx context.Context, userID, fieldsHash string) (*models.Address, error) {
	addr, err := s.repo.FindByHash(ctx, userID, fieldsHash)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetDefault(ctx, userID, addr.FieldsHash, addr.ID); err != nil {
		return nil, err
	}
	addr.IsDefault = true
	return addr, nil
}

// List retourne les adresses de l'utilisateur, le défaut marqué.
func (s *AddressService) List(ctx context.Context, userID string) ([]models.Address, error) {
	addrs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	def, err := s.repo.DefaultAddress(ctx, userID)
	if err == nil && def != nil {
		for i := range addrs {
			if addrs[i].ID == def.ID {
				addrs[i].IsDefault = true
			}
		}
	}
	return addrs, nil
}
