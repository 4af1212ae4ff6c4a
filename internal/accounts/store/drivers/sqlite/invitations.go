package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/domain"
	"github.com/aussiebroadwan/coachdesk/internal/accounts/store"
)

type invitationsRepo struct {
	db dbtx
}

const invitationColumns = `id, user_record_id, email, role, invited_by, email_sent,
	message_id, account_created, password_reset_sent, created_at`

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.UserRecordID,
		strings.ToLower(inv.Email),
		string(inv.Role),
		inv.InvitedBy,
		inv.EmailSent,
		mapStringNull(inv.MessageID),
		inv.AccountCreated,
		inv.PasswordResetSent,
		toMillis(inv.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *invitationsRepo) GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err != nil {
		return domain.Invitation{}, mapNotFound(err)
	}
	return inv, nil
}

func (r *invitationsRepo) ListRecentInvitations(ctx context.Context, limit int) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invitationsRepo) DeleteInvitationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(s rowScanner) (domain.Invitation, error) {
	var (
		inv       domain.Invitation
		role      string
		messageID sql.NullString
		createdAt int64
	)
	err := s.Scan(
		&inv.ID,
		&inv.UserRecordID,
		&inv.Email,
		&role,
		&inv.InvitedBy,
		&inv.EmailSent,
		&messageID,
		&inv.AccountCreated,
		&inv.PasswordResetSent,
		&createdAt,
	)
	if err != nil {
		return domain.Invitation{}, err
	}
	inv.Role = domain.Role(role)
	inv.MessageID = mapNullString(messageID)
	inv.CreatedAt = fromMillis(createdAt)
	return inv, nil
}
