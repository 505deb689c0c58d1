package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

var _ repository.CardTokenRepository = (*cardTokenRepo)(nil)

// Sealer encrypts card tokens at rest. A nil Sealer stores them as given.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type cardTokenRepo struct {
	pool   *pgxpool.Pool
	sealer Sealer
}

func NewCardTokenRepo(pool *pgxpool.Pool, sealer Sealer) *cardTokenRepo {
	return &cardTokenRepo{pool: pool, sealer: sealer}
}

func (r *cardTokenRepo) Upsert(ctx context.Context, tx repository.Tx, c *model.SavedCardToken) error {
	token := c.CardToken
	if r.sealer != nil && token != "" {
		sealed, err := r.sealer.Encrypt(token)
		if err != nil {
			return err
		}
		token = sealed
	}
	const q = `
INSERT INTO saved_card_tokens (user_id, wallet_id, card_token, masked_card, card_type, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (user_id) DO UPDATE SET
  wallet_id=$2, card_token=$3, masked_card=$4, card_type=$5, is_active=$6, updated_at=$8;`
	if _, err := execSQL(ctx, r.pool, tx, q, c.UserID, c.WalletID, token, c.MaskedCard, c.CardType, c.IsActive, c.CreatedAt, c.UpdatedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *cardTokenRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.SavedCardToken, error) {
	const q = `
SELECT user_id, wallet_id, card_token, masked_card, card_type, is_active, created_at, updated_at
  FROM saved_card_tokens WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	c := &model.SavedCardToken{}
	if err := row.Scan(&c.UserID, &c.WalletID, &c.CardToken, &c.MaskedCard, &c.CardType, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	if r.sealer != nil && c.CardToken != "" {
		plain, err := r.sealer.Decrypt(c.CardToken)
		if err != nil {
			return nil, err
		}
		c.CardToken = plain
	}
	return c, nil
}
