package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type OrderRepository interface {
	// CreateWithTickets persists the order and attaches every ticket in
	// one transaction. Either all tickets attach or none do.
	CreateWithTickets(ctx context.Context, o *models.Order, ticketIDs []string) error
	Get(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Order, error)
	// UpdateStatusIf moves the order between statuses in one conditional
	// statement. Returns false with nothing changed when the order was
	// not in the expected status.
	UpdateStatusIf(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)
	ListExpiredPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
	Delete(ctx context.Context, id string) error
}

type pgOrderRepository struct {
	db      *sql.DB
	tickets TicketRepository
	l       logger.Logger
}

func NewOrderRepository(db *sql.DB, tickets TicketRepository, l logger.Logger) OrderRepository {
	return &pgOrderRepository{db: db, tickets: tickets, l: l}
}

func (r *pgOrderRepository) CreateWithTickets(ctx context.Context, o *models.Order, ticketIDs []string) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = models.OrderStatusPendingPayment
	o.CreatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, user_email, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.UserID, o.UserEmail, o.Price, o.Status, o.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgOrderRepository.CreateWithTickets: %v", err)
		return err
	}

	// The order_id IS NULL guard makes exclusivity hold even when two
	// orders race for the same ticket: the loser attaches fewer rows
	// than requested and the whole transaction rolls back.
	res, err := tx.ExecContext(ctx, `
		UPDATE tickets SET order_id = $1, status = $2
		WHERE id = ANY($3) AND order_id IS NULL`,
		o.ID, models.TicketStatusPending, pq.Array(ticketIDs),
	)
	if err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgOrderRepository.CreateWithTickets: %v", err)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n != int64(len(ticketIDs)) {
		tx.Rollback()
		return ErrTicketConflict
	}

	return tx.Commit()
}

func (r *pgOrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_email, price, status, created_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Price, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "repository.pgOrderRepository.Get: %v", err)
		return nil, err
	}

	o.Tickets, err = r.tickets.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *pgOrderRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Order, error) {
	if page < 1 {
		page = 1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, user_email, price, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgOrderRepository.ListByUser: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// UpdateStatusIf is the settlement transition: the status guard in the
// WHERE clause makes the check and the write one atomic statement, the
// same device Reserve uses on the inventory counters. Of two callers
// racing to settle the same order, exactly one moves a row.
func (r *pgOrderRepository) UpdateStatusIf(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgOrderRepository.UpdateStatusIf: %v", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *pgOrderRepository) ListExpiredPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, user_email, price, status, created_at
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		models.OrderStatusPendingPayment, olderThan, limit,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgOrderRepository.ListExpiredPending: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (r *pgOrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgOrderRepository.Delete: %v", err)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Price, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
