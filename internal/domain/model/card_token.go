package model

import (
	"strings"
	"time"
)

const (
	DefaultMaskedCard = "**** **** **** 1234"
	UnknownCardType   = "unknown"
)

// SavedCardToken is the reusable charge credential for a buyer. One per buyer;
// re-tokenization overwrites it.
type SavedCardToken struct {
	UserID     int64
	WalletID   string
	CardToken  string
	MaskedCard string
	CardType   string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewSavedCardToken(userID int64, walletID, cardToken, maskedCard, cardType string) *SavedCardToken {
	if strings.TrimSpace(maskedCard) == "" {
		maskedCard = DefaultMaskedCard
	}
	if strings.TrimSpace(cardType) == "" {
		cardType = UnknownCardType
	}
	now := time.Now()
	return &SavedCardToken{
		UserID:     userID,
		WalletID:   walletID,
		CardToken:  cardToken,
		MaskedCard: maskedCard,
		CardType:   cardType,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Display renders the masked card with its network, e.g. "537541******1234 (VISA)".
func (c *SavedCardToken) Display() string {
	if c.CardType == "" || c.CardType == UnknownCardType {
		return c.MaskedCard
	}
	return c.MaskedCard + " (" + strings.ToUpper(c.CardType) + ")"
}
