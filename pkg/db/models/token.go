package models

import (
	"time"

	"github.com/google/uuid"
)

// Token is a supported SPL token mint.
type Token struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MintAddress string    `gorm:"column:mint_address;not null;uniqueIndex:ux_tokens_mint_address"`
	Symbol      string    `gorm:"column:symbol;not null;uniqueIndex:ux_tokens_symbol"`
	Name        string    `gorm:"column:name;not null"`
	Decimals    int       `gorm:"column:decimals;not null"`
	LogoURL     *string   `gorm:"column:logo_url"`
	IsStable    bool      `gorm:"column:is_stable;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
