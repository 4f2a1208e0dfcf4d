package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SigningKey persists the platform-wide asymmetric keypair. The Singleton
// column carries a unique constraint so concurrent first-boot generation
// races converge on a single stored row: the losing insert is dropped and the
// winner is reloaded.
type SigningKey struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	KID           string    `gorm:"not null" json:"kid"`
	Alg           string    `gorm:"not null" json:"alg"`
	PrivateKeyPEM string    `gorm:"type:text;not null" json:"-"`
	PublicKeyPEM  string    `gorm:"type:text;not null" json:"public_key_pem"`
	Singleton     string    `gorm:"not null;default:platform;uniqueIndex" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (k *SigningKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	if k.Singleton == "" {
		k.Singleton = "platform"
	}
	return nil
}
