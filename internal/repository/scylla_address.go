package repository

import (
	"context"
	"errors"
	"fmt"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gocql/gocql"
)

// ScyllaAddressRepository gère les adresses de livraison dans users_ks.
// Le dédoublonnage repose sur la clé (user_id, fields_hash) + LWT ; le défaut
// est un pointeur mono-ligne, donc l'upsert ne peut jamais laisser deux
// défauts.
type ScyllaAddressRepository struct {
	session *gocql.Session
}

func NewScyllaAddressRepository(session *gocql.Session) *ScyllaAddressRepository {
	return &ScyllaAddressRepository{session: session}
}

const addressColumns = "user_id, fields_hash, address_id, recipient_name, phone, street, city, region, postal_code, created_at"

func scanAddress(scan func(...interface{}) error) (*models.Address, error) {
	var a models.Address
	err := scan(&a.UserID, &a.FieldsHash, &a.ID, &a.RecipientName, &a.Phone,
		&a.Street, &a.City, &a.Region, &a.PostalCode, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ScyllaAddressRepository) FindByHash(ctx context.Context, userID, fieldsHash string) (*models.Address, error) {
	addr, err := scanAddress(r.session.Query(
		"SELECT "+addressColumns+" FROM addresses_by_user WHERE user_id = ? AND fields_hash = ?",
		userID, fieldsHash,
	).WithContext(ctx).Scan)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture adresse: %w", err)
	}
	return addr, nil
}

// InsertIfAbsent tente l'insertion en LWT. Si une adresse identique existe
// déjà (course entre deux checkouts), la ligne gagnante est retournée.
func (r *ScyllaAddressRepository) InsertIfAbsent(ctx context.Context, addr models.Address) (*models.Address, error) {
	applied, err := r.session.Query(
		"INSERT INTO addresses_by_user ("+addressColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS",
		addr.UserID, addr.FieldsHash, addr.ID, addr.RecipientName, addr.Phone,
		addr.Street, addr.City, addr.Region, addr.PostalCode, addr.CreatedAt,
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return nil, fmt.Errorf("insertion adresse: %w", err)
	}
	if applied {
		return &addr, nil
	}
	// Perdu la course : on adopte la ligne existante
	return r.FindByHash(ctx, addr.UserID, addr.FieldsHash)
}

func (r *ScyllaAddressRepository) SetDefault(ctx context.Context, userID, fieldsHash string, addressID gocql.UUID) error {
	return r.session.Query(
		"INSERT INTO default_address_by_user (user_id, fields_hash, address_id) VALUES (?, ?, ?)",
		userID, fieldsHash, addressID,
	).WithContext(ctx).Exec()
}

func (r *ScyllaAddressRepository) DefaultAddress(ctx context.Context, userID string) (*models.Address, error) {
	var fieldsHash string
	var addressID gocql.UUID
	err := r.session.Query(
		"SELECT fields_hash, address_id FROM default_address_by_user WHERE user_id = ?", userID,
	).WithContext(ctx).Scan(&fieldsHash, &addressID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture adresse par défaut: %w", err)
	}

	addr, err := r.FindByHash(ctx, userID, fieldsHash)
	if err != nil {
		// Pointeur orphelin (adresse supprimée) : pas de défaut
		if errors.Is(err, service.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	addr.IsDefault = true
	return addr, nil
}

// LatestAddress retourne l'adresse la plus récemment créée, utilisée comme
// repli quand aucun défaut n'est posé.
func (r *ScyllaAddressRepository) LatestAddress(ctx context.Context, userID string) (*models.Address, error) {
	addrs, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, service.ErrNotFound
	}
	latest := addrs[0]
	for _, a := range addrs[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return &latest, nil
}

func (r *ScyllaAddressRepository) ListByUser(ctx context.Context, userID string) ([]models.Address, error) {
	iter := r.session.Query(
		"SELECT "+addressColumns+" FROM addresses_by_user WHERE user_id = ?", userID,
	).WithContext(ctx).Iter()

	var addrs []models.Address
	for {
		var a models.Address
		if !iter.Scan(&a.UserID, &a.FieldsHash, &a.ID, &a.RecipientName, &a.Phone,
			&a.Street, &a.City, &a.Region, &a.PostalCode, &a.CreatedAt) {
			break
		}
		addrs = append(addrs, a)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste adresses: %w", err)
	}
	return addrs, nil
}
