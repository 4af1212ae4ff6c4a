package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
)

type accountEventsRepo struct {
	db dbtx
}

func (r *accountEventsRepo) CreateAccountEvent(ctx context.Context, ev domain.AccountEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO account_events (id, email, action, actor, reason, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		strings.ToLower(ev.Email),
		string(ev.Action),
		ev.Actor,
		ev.Reason,
		string(ev.Outcome),
		ev.Detail,
		toMillis(ev.CreatedAt),
	)
	return err
}

func (r *accountEventsRepo) ListAccountEventsByEmail(
	ctx context.Context,
	email string,
	limit int,
) ([]domain.AccountEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, action, actor, reason, outcome, detail, created_at
		FROM account_events
		WHERE email = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strings.ToLower(email), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccountEvent
	for rows.Next() {
		var (
			ev              domain.AccountEvent
			action, outcome string
			createdAt       int64
		)
		if err := rows.Scan(&ev.ID, &ev.Email, &action, &ev.Actor, &ev.Reason, &outcome, &ev.Detail, &createdAt); err != nil {
			return nil, err
		}
		ev.Action = domain.AccountAction(action)
		ev.Outcome = domain.EventOutcome(outcome)
		ev.CreatedAt = fromMillis(createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *accountEventsRepo) DeleteAccountEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM account_events WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
