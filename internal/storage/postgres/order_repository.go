package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, owner_id, status, total_amount, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		order.ID, order.OwnerID, int16(order.Status), order.TotalAmount,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s already exists: %w", order.ID, err)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err = insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, ownerID, id string) (domain.Order, error) {
	if !isUUID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Заказ и позиции читаются из одного снимка: total_amount всегда равен сумме позиций.
	tx, err := r.db.BeginTx(ctx, snapshotRead)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin read order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT id, owner_id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	if order.Items, err = loadItems(ctx, tx, order.ID); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit read order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, ownerID string, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	req := filter.PageRequest.Normalize()
	page := domain.Page[domain.Order]{Page: req.Page, PerPage: req.PerPage, Items: []domain.Order{}}

	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	if filter.Status != nil {
		where += ` AND status = $2`
		args = append(args, int16(*filter.Status))
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&page.Total); err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("count orders: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	limitPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT id, owner_id, status, total_amount, created_at, updated_at
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, limitPos+1)
	args = append(args, req.PerPage, req.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.Page[domain.Order]{}, fmt.Errorf("scan order row: %w", err)
		}
		page.Items = append(page.Items, order)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("iterate order rows: %w", err)
	}

	return page, nil
}

func (r *orderRepository) Update(ctx context.Context, ownerID, id string, upd domain.OrderUpdate) (err error) {
	if !isUUID(id) {
		return domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockOwnedOrder(ctx, tx, ownerID, id, "FOR UPDATE"); err != nil {
		return err
	}

	updatedAt := upd.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var status any
	if upd.Status != nil {
		status = int16(*upd.Status)
	}
	var total any
	if upd.ReplaceItems {
		total = upd.TotalAmount
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = COALESCE($1::smallint, status),
		    total_amount = COALESCE($2::numeric, total_amount),
		    updated_at = $3
		WHERE id = $4
	`, status, total, updatedAt, id); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if upd.ReplaceItems {
		if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err = insertItems(ctx, tx, id, upd.Items); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update order: %w", err)
	}
	return nil
}

func (r *orderRepository) DeleteIfNoPayments(ctx context.Context, ownerID, id string) (deleted bool, err error) {
	if !isUUID(id) {
		return false, domain.ErrOrderNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil || !deleted {
			_ = tx.Rollback()
		}
	}()

	// Блокировка строки заказа сериализует удаление со вставкой платежа (FOR SHARE).
	if err = lockOwnedOrder(ctx, tx, ownerID, id, "FOR UPDATE"); err != nil {
		return false, err
	}

	var hasPayments bool
	if err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)
	`, id).Scan(&hasPayments); err != nil {
		return false, fmt.Errorf("check order payments: %w", err)
	}
	if hasPayments {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete order: %w", err)
	}
	return true, nil
}

var snapshotRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func loadItems(ctx context.Context, tx *sql.Tx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_name, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID string, items []domain.OrderItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_name, quantity, unit_price, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			item.ID, orderID, item.ProductName, item.Quantity, item.UnitPrice, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// lockOwnedOrder блокирует строку заказа владельца или возвращает ErrOrderNotFound.
func lockOwnedOrder(ctx context.Context, tx *sql.Tx, ownerID, id, lock string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE id = $1 AND owner_id = $2 `+lock, id, ownerID).Scan(&locked)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	return fmt.Errorf("lock order: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status int16
		total  decimal.Decimal
	)
	if err := row.Scan(&order.ID, &order.OwnerID, &status, &total, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.TotalAmount = total
	return order, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	return hasPgCode(err, pgUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgForeignKeyViolation)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
