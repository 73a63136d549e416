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

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetBatch(ctx context.Context, ids []string) ([]models.Ticket, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	UpdateStatusByOrder(ctx context.Context, orderID string, status models.TicketStatus) error
	DetachFromOrder(ctx context.Context, orderID string, status models.TicketStatus) error
	Delete(ctx context.Context, id string) error

	// CountEmittedSince returns per-event ticket emission counts for
	// tickets emitted at or after the given instant.
	CountEmittedSince(ctx context.Context, since time.Time) (map[string]int, error)
}

type pgTicketRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewTicketRepository(db *sql.DB, l logger.Logger) TicketRepository {
	return &pgTicketRepository{db: db, l: l}
}

const ticketColumns = `id, event_id, category_id, user_id, order_id, status, category_name, price, event_location, event_date, emitted_at`

func (r *pgTicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EmittedAt.IsZero() {
		t.EmittedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.EventID, t.CategoryID, t.UserID, t.OrderID, t.Status, t.Category, t.Price, t.Location, t.EventDate, t.EmittedAt,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *pgTicketRepository) GetBatch(ctx context.Context, ids []string) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets WHERE id = ANY($1)`, pq.Array(ids),
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.GetBatch: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

func (r *pgTicketRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY emitted_at`, orderID,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.ListByOrder: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

func (r *pgTicketRepository) UpdateStatusByOrder(ctx context.Context, orderID string, status models.TicketStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET status = $2 WHERE order_id = $1`, orderID, status,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.UpdateStatusByOrder: %v", err)
	}
	return err
}

// DetachFromOrder clears the order reference on every ticket of the
// order and stamps the given terminal status, in one statement.
func (r *pgTicketRepository) DetachFromOrder(ctx context.Context, orderID string, status models.TicketStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET order_id = NULL, status = $2 WHERE order_id = $1`, orderID, status,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.DetachFromOrder: %v", err)
	}
	return err
}

func (r *pgTicketRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.Delete: %v", err)
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

func (r *pgTicketRepository) CountEmittedSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, COUNT(*) FROM tickets
		WHERE emitted_at >= $1
		GROUP BY event_id`, since,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgTicketRepository.CountEmittedSince: %v", err)
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}

	return counts, rows.Err()
}

func scanTickets(rows *sql.Rows) ([]models.Ticket, error) {
	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.CategoryID, &t.UserID, &t.OrderID, &t.Status, &t.Category, &t.Price, &t.Location, &t.EventDate, &t.EmittedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
