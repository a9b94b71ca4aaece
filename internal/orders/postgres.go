package orders

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

// RunMigrations applies the embedded schema migrations.
func (r *PostgresRepository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, checkout_id, user_id, guest_id, total_amount, currency, status, items, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.CheckoutID,
		nullString(order.UserID),
		nullString(order.GuestID),
		order.TotalAmount,
		order.Currency,
		order.Status,
		itemsJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, checkout_id, user_id, guest_id, total_amount, currency, status, items, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	if owner.Kind == domain.OwnerGuest {
		query = `SELECT id, checkout_id, user_id, guest_id, total_amount, currency, status, items, created_at, updated_at
		         FROM orders WHERE guest_id = $1 AND user_id IS NULL ORDER BY created_at DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("query orders by owner: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var (
			order     domain.Order
			userID    sql.NullString
			guestID   sql.NullString
			itemsJSON []byte
		)
		if err := rows.Scan(
			&order.ID,
			&order.CheckoutID,
			&userID,
			&guestID,
			&order.TotalAmount,
			&order.Currency,
			&order.Status,
			&itemsJSON,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.UserID = userID.String
		order.GuestID = guestID.String
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
		out = append(out, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ClaimGuestOrders(ctx context.Context, userID, guestID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET user_id = $1, updated_at = NOW() WHERE guest_id = $2 AND user_id IS NULL`,
		userID, guestID)
	if err != nil {
		return 0, fmt.Errorf("claim guest orders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("claim guest orders: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
