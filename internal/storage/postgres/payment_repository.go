package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(ctx context.Context, ownerID string, payment domain.Payment) (err error) {
	if !isUUID(payment.OrderID) {
		return domain.ErrOrderNotFound
	}

	response, err := json.Marshal(payment.GatewayResponse)
	if err != nil {
		return fmt.Errorf("marshal gateway response: %w", err)
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

	// FOR SHARE не даёт конкурентному удалению заказа проскочить между проверкой и вставкой.
	if err = lockOwnedOrder(ctx, tx, ownerID, payment.OrderID, "FOR SHARE"); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, amount, gateway, status, transaction_id, gateway_response, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		payment.ID, payment.OrderID, payment.Amount, int16(payment.Gateway), int16(payment.Status),
		payment.TransactionID, response, payment.CreatedAt, payment.UpdatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, ownerID string, filter domain.PaymentFilter) (domain.Page[domain.Payment], error) {
	req := filter.PageRequest.Normalize()
	page := domain.Page[domain.Payment]{Page: req.Page, PerPage: req.PerPage, Items: []domain.Payment{}}

	if filter.OrderID != "" && !isUUID(filter.OrderID) {
		return page, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where := `WHERE o.owner_id = $1`
	args := []any{ownerID}
	if filter.OrderID != "" {
		where += ` AND p.order_id = $2`
		args = append(args, filter.OrderID)
	}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		`+where, args...).Scan(&page.Total); err != nil {
		return domain.Page[domain.Payment]{}, fmt.Errorf("count payments: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	limitPos := len(args) + 1
	query := fmt.Sprintf(`
		SELECT p.id, p.order_id, p.amount, p.gateway, p.status, p.transaction_id,
		       p.gateway_response, p.created_at, p.updated_at
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		%s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, limitPos+1)
	args = append(args, req.PerPage, req.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Page[domain.Payment]{}, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p             domain.Payment
			amount        decimal.Decimal
			gateway       int16
			status        int16
			transactionID sql.NullString
			response      []byte
		)
		if err := rows.Scan(
			&p.ID, &p.OrderID, &amount, &gateway, &status, &transactionID,
			&response, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return domain.Page[domain.Payment]{}, fmt.Errorf("scan payment row: %w", err)
		}
		p.Amount = amount
		p.Gateway = domain.PaymentGateway(gateway)
		p.Status = domain.PaymentStatus(status)
		if transactionID.Valid {
			id := transactionID.String
			p.TransactionID = &id
		}
		if len(response) > 0 {
			if err := json.Unmarshal(response, &p.GatewayResponse); err != nil {
				return domain.Page[domain.Payment]{}, fmt.Errorf("decode gateway response: %w", err)
			}
		}
		page.Items = append(page.Items, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Payment]{}, fmt.Errorf("iterate payment rows: %w", err)
	}

	return page, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
