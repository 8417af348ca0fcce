package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Each mutation is a single conditional statement; the row lock taken by
// UPDATE serializes concurrent callers on the same product.
const (
	sqlGetStock = `SELECT product_id, total, reserved FROM stock WHERE product_id=$1`

	sqlReserve = `UPDATE stock SET reserved = reserved + $2, updated_at = now()
		WHERE product_id=$1 AND total - reserved >= $2`

	sqlRelease = `UPDATE stock SET reserved = reserved - $2, updated_at = now()
		WHERE product_id=$1 AND reserved >= $2`

	sqlSetTotal = `INSERT INTO stock(product_id, total) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET total = EXCLUDED.total, updated_at = now()
		WHERE stock.reserved <= EXCLUDED.total`

	sqlListStock = `SELECT product_id, total, reserved FROM stock ORDER BY product_id`

	sqlSeedStock = `INSERT INTO stock(product_id, total) VALUES ($1, $2)
		ON CONFLICT (product_id) DO NOTHING`
)

type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Get(ctx context.Context, productID int64) (StockRecord, error) {
	var rec StockRecord
	err := s.DB.QueryRow(ctx, sqlGetStock, productID).Scan(&rec.ProductID, &rec.Total, &rec.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrUnknownProduct
	}
	return rec, err
}

func (s *PostgresStore) SetTotal(ctx context.Context, productID, total int64) error {
	if total < 0 {
		return ErrInvalidQuantity
	}
	ct, err := s.DB.Exec(ctx, sqlSetTotal, productID, total)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrBelowReserved
	}
	return nil
}

func (s *PostgresStore) Reserve(ctx context.Context, productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := s.DB.Exec(ctx, sqlReserve, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return s.explainMiss(ctx, productID, ErrInsufficient)
}

func (s *PostgresStore) Release(ctx context.Context, productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := s.DB.Exec(ctx, sqlRelease, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	return s.explainMiss(ctx, productID, ErrOverRelease)
}

// explainMiss tells an absent row apart from a failed guard after an
// UPDATE matched nothing.
func (s *PostgresStore) explainMiss(ctx context.Context, productID int64, guard error) error {
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}
	return guard
}

func (s *PostgresStore) List(ctx context.Context) ([]StockRecord, error) {
	rows, err := s.DB.Query(ctx, sqlListStock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StockRecord{}
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(&rec.ProductID, &rec.Total, &rec.Reserved); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Seed(ctx context.Context, records []StockRecord) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range records {
		if r.Total < 0 {
			return ErrInvalidQuantity
		}
		if _, err := tx.Exec(ctx, sqlSeedStock, r.ProductID, r.Total); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
