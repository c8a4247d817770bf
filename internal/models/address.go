package models

import (
	"time"

	"github.com/gocql/gocql"
)

type Address struct {
	ID            gocql.UUID `json:"id"`
	UserID        string     `json:"user_id"`
	RecipientName string     `json:"recipient_name"`
	Phone         string     `json:"phone"`
	Street        string     `json:"street"`
	City          string     `json:"city"`
	Region        string     `json:"region"`
	PostalCode    string     `json:"postal_code"`
	FieldsHash    string     `json:"-"` // hash des champs normalisés, clé de dédoublonnage
	IsDefault     bool       `json:"is_default"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AddressFields sont les champs candidats envoyés au checkout ou depuis le profil.
type AddressFields struct {
	RecipientName string `json:"recipient_name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Street        string `json:"street" binding:"required"`
	City          string `json:"city" binding:"required"`
	Region        string `json:"region" binding:"required"`
	PostalCode    string `json:"postal_code" binding:"required"`
}
