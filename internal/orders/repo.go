package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists orders and serves the product catalog.
type Repository interface {
	// Create assigns ID, CreatedAt and UpdatedAt on o.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	// ListByEmail is ordered by creation time, newest first.
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	SetSessionID(ctx context.Context, id int64, sessionID string) error
	// UpdateStatus moves id from -> to and returns ErrStatusConflict when
	// the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	ListProducts(ctx context.Context) ([]Product, error)
}

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, email, amount_cents, status, stripe_session_id, shipping_address, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, o *Order) error {
	addr, err := marshalAddress(o.ShippingAddress)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(email, amount_cents, status, shipping_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		o.Email, o.AmountCents, string(o.Status), addr,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, quantity, price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, i, it.ProductID, it.Quantity, it.PriceCents,
		)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id int64) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	items, err := r.items(ctx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

func (r *Repo) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE email=$1 ORDER BY created_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, ids []int64) (map[int64][]Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT order_id, product_id, quantity, price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(ids))
	for rows.Next() {
		var orderID int64
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func (r *Repo) SetSessionID(ctx context.Context, id int64, sessionID string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET stripe_session_id=$2, updated_at=now() WHERE id=$1`, id, sessionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, description, price_cents, image_url, created_at, updated_at
		FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeedProducts inserts the catalog rows that are missing.
func (r *Repo) SeedProducts(ctx context.Context, products []Product) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products(id, name, description, price_cents, image_url)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Description, p.PriceCents, p.ImageURL,
		); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	var addr []byte
	if err := row.Scan(&o.ID, &o.Email, &o.AmountCents, &status, &o.StripeSessionID, &addr, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if len(addr) > 0 {
		o.ShippingAddress = &Address{}
		if err := json.Unmarshal(addr, o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address of order %d: %w", o.ID, err)
		}
	}
	return o, nil
}

func marshalAddress(a *Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}
