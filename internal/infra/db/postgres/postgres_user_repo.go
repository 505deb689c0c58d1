package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
)

var (
	_ repository.UserRepository     = (*PostgresUserRepo)(nil)
	_ repository.ProductRepository  = (*PostgresProductRepo)(nil)
	_ repository.SettingsRepository = (*PostgresSettingsRepo)(nil)
)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

// Save inserts the user or refreshes the username. The referrer is only set
// once and the partner balance is never touched here.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (user_id, user_name, ref_id, partner_balance, join_date)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO UPDATE SET
  user_name = EXCLUDED.user_name,
  ref_id    = COALESCE(users.ref_id, EXCLUDED.ref_id);`
	if _, err := execSQL(ctx, r.pool, tx, q, u.UserID, u.UserName, u.RefID, u.PartnerBalance, u.JoinDate); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	const q = `SELECT user_id, user_name, ref_id, partner_balance, join_date FROM users WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tgID)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.UserID, &u.UserName, &u.RefID, &u.PartnerBalance, &u.JoinDate); err != nil {
		return nil, mapScanErr(err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) AddPartnerBalance(ctx context.Context, tx repository.Tx, tgID int64, amount decimal.Decimal) error {
	const q = `UPDATE users SET partner_balance = partner_balance + $2 WHERE user_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, tgID, amount)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// -----------------------------
// Catalog
// -----------------------------

type PostgresProductRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProductRepo(pool *pgxpool.Pool) *PostgresProductRepo {
	return &PostgresProductRepo{pool: pool}
}

func (r *PostgresProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if p.ID == 0 {
		const ins = `
INSERT INTO products (product_name, description, product_price, payment_type, category)
VALUES ($1,$2,$3,$4,$5) RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, ins, p.Name, p.Description, p.Price, p.PaymentType, p.Category)
		if err != nil {
			return err
		}
		if err := row.Scan(&p.ID); err != nil {
			return mapExecErr(err)
		}
		return nil
	}
	const upd = `
INSERT INTO products (id, product_name, description, product_price, payment_type, category)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  product_name=$2, description=$3, product_price=$4, payment_type=$5, category=$6;`
	if _, err := execSQL(ctx, r.pool, tx, upd, p.ID, p.Name, p.Description, p.Price, p.PaymentType, p.Category); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *PostgresProductRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	const q = `SELECT id, product_name, description, product_price, payment_type, category FROM products WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.PaymentType, &p.Category); err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

// -----------------------------
// Settings
// -----------------------------

type PostgresSettingsRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSettingsRepo(pool *pgxpool.Pool) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{pool: pool}
}

func (r *PostgresSettingsRepo) Get(ctx context.Context, tx repository.Tx, key string) (string, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT value FROM partner_settings WHERE key=$1;`, key)
	if err != nil {
		return "", err
	}
	var v string
	if err := row.Scan(&v); err != nil {
		return "", mapScanErr(err)
	}
	return v, nil
}

func (r *PostgresSettingsRepo) Set(ctx context.Context, tx repository.Tx, key, value string) error {
	const q = `INSERT INTO partner_settings (key, value) VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET value=$2;`
	if _, err := execSQL(ctx, r.pool, tx, q, key, value); err != nil {
		return mapExecErr(err)
	}
	return nil
}
