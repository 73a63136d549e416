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

type EventRepository interface {
	Create(ctx context.Context, e *models.Event, cats []models.TicketCategory) error
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	GetCategory(ctx context.Context, id string) (*models.TicketCategory, error)

	// Inventory ledger
	Reserve(ctx context.Context, eventID, categoryID string) (bool, error)
	Release(ctx context.Context, eventID, categoryID string) error
	RemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error)

	// Trending
	UpdateTrending(ctx context.Context, counts map[string]int, trendingIDs []string) error
	ListTrending(ctx context.Context) ([]models.Event, error)
}

type pgEventRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewEventRepository(db *sql.DB, l logger.Logger) EventRepository {
	return &pgEventRepository{db: db, l: l}
}

func (r *pgEventRepository) Create(ctx context.Context, e *models.Event, cats []models.TicketCategory) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()

	total := 0
	for i := range cats {
		total += cats[i].AvailableCategoryTickets
	}
	e.AvailableTickets = total
	e.OriginalAmountOfTickets = total

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, name, date, location, available_tickets, original_amount_of_tickets, is_trending, tickets_emitted_recently, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, 0, $7)`,
		e.ID, e.Name, e.Date, e.Location, e.AvailableTickets, e.OriginalAmountOfTickets, e.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.Create: %v", err)
		return err
	}

	for i := range cats {
		if cats[i].ID == "" {
			cats[i].ID = uuid.NewString()
		}
		cats[i].EventID = e.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ticket_categories (id, event_id, name, price, available_category_tickets)
			VALUES ($1, $2, $3, $4, $5)`,
			cats[i].ID, e.ID, cats[i].Name, cats[i].Price, cats[i].AvailableCategoryTickets,
		)
		if err != nil {
			tx.Rollback()
			r.l.Errorf(ctx, "repository.pgEventRepository.Create: %v", err)
			return err
		}
	}

	return tx.Commit()
}

func (r *pgEventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, date, location, available_tickets, original_amount_of_tickets, is_trending, tickets_emitted_recently, created_at
		FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Date, &e.Location, &e.AvailableTickets, &e.OriginalAmountOfTickets, &e.IsTrending, &e.TicketsEmittedRecently, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.Get: %v", err)
		return nil, err
	}

	return &e, nil
}

func (r *pgEventRepository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, date, location, available_tickets, original_amount_of_tickets, is_trending, tickets_emitted_recently, created_at
		FROM events ORDER BY created_at`)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.List: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *pgEventRepository) GetCategory(ctx context.Context, id string) (*models.TicketCategory, error) {
	var c models.TicketCategory
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, name, price, available_category_tickets
		FROM ticket_categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.EventID, &c.Name, &c.Price, &c.AvailableCategoryTickets)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.GetCategory: %v", err)
		return nil, err
	}

	return &c, nil
}

// Reserve consumes one unit of inventory from the category and its
// event. Both decrements are single conditional UPDATEs guarded by
// "available > 0"; concurrent callers racing for the last unit can
// never both see a positive counter and both succeed. Returns false,
// with nothing consumed, when either counter is exhausted.
func (r *pgEventRepository) Reserve(ctx context.Context, eventID, categoryID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ticket_categories
		SET available_category_tickets = available_category_tickets - 1
		WHERE id = $1 AND available_category_tickets > 0`, categoryID,
	)
	if err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.Reserve: %v", err)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if n == 0 {
		tx.Rollback()
		return false, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE events
		SET available_tickets = available_tickets - 1
		WHERE id = $1 AND available_tickets > 0`, eventID,
	)
	if err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.Reserve: %v", err)
		return false, err
	}

	n, err = res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if n == 0 {
		// Category had stock but the event counter is exhausted; roll the
		// category decrement back and report sold out.
		tx.Rollback()
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// Release returns one unit of inventory. Unconditional: every
// compensation path (cancellation, failure, expiration, deletion) must
// always succeed in giving the unit back.
func (r *pgEventRepository) Release(ctx context.Context, eventID, categoryID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ticket_categories
		SET available_category_tickets = available_category_tickets + 1
		WHERE id = $1`, categoryID,
	); err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.Release: %v", err)
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE events
		SET available_tickets = available_tickets + 1
		WHERE id = $1`, eventID,
	); err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.Release: %v", err)
		return err
	}

	return tx.Commit()
}

func (r *pgEventRepository) RemainingTickets(ctx context.Context, eventID string) (*models.RemainingTickets, error) {
	e, err := r.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, available_category_tickets
		FROM ticket_categories WHERE event_id = $1`, eventID,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.RemainingTickets: %v", err)
		return nil, err
	}
	defer rows.Close()

	rem := &models.RemainingTickets{
		EventID:     eventID,
		Event:       e.AvailableTickets,
		PerCategory: map[string]int{},
	}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		rem.PerCategory[id] = n
	}

	return rem, rows.Err()
}

func (r *pgEventRepository) UpdateTrending(ctx context.Context, counts map[string]int, trendingIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for id, n := range counts {
		if _, err := tx.ExecContext(ctx, `
			UPDATE events SET tickets_emitted_recently = $2 WHERE id = $1`, id, n,
		); err != nil {
			tx.Rollback()
			r.l.Errorf(ctx, "repository.pgEventRepository.UpdateTrending: %v", err)
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE events SET is_trending = (id = ANY($1))`, pq.Array(trendingIDs)); err != nil {
		tx.Rollback()
		r.l.Errorf(ctx, "repository.pgEventRepository.UpdateTrending: %v", err)
		return err
	}

	return tx.Commit()
}

func (r *pgEventRepository) ListTrending(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, date, location, available_tickets, original_amount_of_tickets, is_trending, tickets_emitted_recently, created_at
		FROM events WHERE is_trending ORDER BY tickets_emitted_recently DESC, id`)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.ListTrending: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var out []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Location, &e.AvailableTickets, &e.OriginalAmountOfTickets, &e.IsTrending, &e.TicketsEmittedRecently, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
