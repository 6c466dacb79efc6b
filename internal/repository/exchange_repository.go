package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ExchangeRecord is the audit row for one processed message.
type ExchangeRecord struct {
	MessageID string    `json:"message_id"`
	ClientID  string    `json:"client_id"`
	Platform  string    `json:"platform"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Language  string    `json:"language"`
	Intent    string    `json:"intent"`
	Strategy  string    `json:"strategy"`
	Escalated bool      `json:"escalated"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type DailyUsage struct {
	Date        time.Time `json:"date"`
	Messages    int       `json:"messages"`
	Escalations int       `json:"escalations"`
}

// ExchangeRepository keeps an append-only log of exchanges plus daily
// counters. It is optional; client memory never reads from it.
type ExchangeRepository struct {
	db DB
}

func NewExchangeRepository(db DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

func (r *ExchangeRepository) Record(ctx context.Context, rec ExchangeRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO exchanges (message_id, client_id, platform, message, response, language, intent, strategy, escalated, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.MessageID, rec.ClientID, rec.Platform, rec.Message, rec.Response, rec.Language,
		rec.Intent, rec.Strategy, rec.Escalated, rec.Reason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}

	escalations := 0
	if rec.Escalated {
		escalations = 1
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO exchange_daily (date, messages, escalations)
		VALUES ($1, 1, $2)
		ON CONFLICT (date)
		DO UPDATE SET messages = exchange_daily.messages + 1, escalations = exchange_daily.escalations + $2
	`, rec.CreatedAt.Format("2006-01-02"), escalations)
	if err != nil {
		return fmt.Errorf("bump daily counters: %w", err)
	}
	return nil
}

// GetDayUsage returns the counters for one day; a missing row means zero.
func (r *ExchangeRepository) GetDayUsage(ctx context.Context, day time.Time) (DailyUsage, error) {
	u := DailyUsage{Date: day}
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(messages, 0), COALESCE(escalations, 0)
		FROM exchange_daily WHERE date = $1
	`, day.Format("2006-01-02")).Scan(&u.Messages, &u.Escalations)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return u, fmt.Errorf("get day usage: %w", err)
	}
	return u, nil
}

// GetUsageHistory returns the last days of counters, oldest first.
func (r *ExchangeRepository) GetUsageHistory(ctx context.Context, since time.Time) ([]DailyUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, messages, escalations
		FROM exchange_daily
		WHERE date >= $1
		ORDER BY date ASC
	`, since.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query usage history: %w", err)
	}
	defer rows.Close()

	usage := []DailyUsage{}
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Messages, &u.Escalations); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
