package privatecall

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"intercom-platform/pkg/utils"
)

// NOTE: This repository assumes the following table exists:
//
//	CREATE TABLE call_invitations (
//	  id           TEXT PRIMARY KEY,
//	  caller_id    INT NOT NULL,
//	  receiver_id  INT NOT NULL,
//	  caller_name  TEXT NOT NULL,
//	  caller_email TEXT NOT NULL DEFAULT '',
//	  caller_role  TEXT NOT NULL DEFAULT '',
//	  channel_name TEXT NOT NULL,
//	  status       TEXT NOT NULL,
//	  created_at   TIMESTAMPTZ NOT NULL,
//	  updated_at   TIMESTAMPTZ NOT NULL,
//	  expires_at   TIMESTAMPTZ NOT NULL,
//	  accepted_at  TIMESTAMPTZ,
//	  ended_at     TIMESTAMPTZ,
//	  end_reason   TEXT NOT NULL DEFAULT ''
//	)

const invitationColumns = `id, caller_id, receiver_id, caller_name, caller_email, caller_role,
channel_name, status, created_at, updated_at, expires_at, accepted_at, ended_at, end_reason`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func scanInvitation(row interface{ Scan(...any) error }) (Invitation, error) {
	var inv Invitation
	var acceptedAt, endedAt sql.NullTime
	err := row.Scan(
		&inv.ID,
		&inv.CallerID,
		&inv.ReceiverID,
		&inv.CallerName,
		&inv.CallerEmail,
		&inv.CallerRole,
		&inv.ChannelName,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
		&inv.ExpiresAt,
		&acceptedAt,
		&endedAt,
		&inv.EndReason,
	)
	if err != nil {
		return Invitation{}, err
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		inv.EndedAt = &t
	}
	return inv, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresRepo) Create(ctx context.Context, inv Invitation) error {
	if inv.ID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO call_invitations (` + invitationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	_, err := r.db.ExecContext(ctx, q,
		inv.ID,
		inv.CallerID,
		inv.ReceiverID,
		inv.CallerName,
		inv.CallerEmail,
		inv.CallerRole,
		inv.ChannelName,
		inv.Status,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.ExpiresAt,
		nullTime(inv.AcceptedAt),
		nullTime(inv.EndedAt),
		inv.EndReason,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Invitation, error) {
	const q = `
SELECT ` + invitationColumns + `
FROM call_invitations
WHERE id = $1
`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Invitation{}, ErrNotFound
	}
	return inv, err
}

func (r *PostgresRepo) Transition(ctx context.Context, id string, from Status, mutate func(*Invitation)) (Invitation, error) {
	var out Invitation
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row so concurrent accept/cancel resolve in commit order.
		const sel = `
SELECT ` + invitationColumns + `
FROM call_invitations
WHERE id = $1
FOR UPDATE
`
		inv, err := scanInvitation(tx.QueryRowContext(ctx, sel, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if inv.Status != from {
			return ErrConflict
		}
		mutate(&inv)

		const upd = `
UPDATE call_invitations
SET status = $2, updated_at = $3, expires_at = $4, accepted_at = $5, ended_at = $6, end_reason = $7
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			inv.ID,
			inv.Status,
			inv.UpdatedAt,
			inv.ExpiresAt,
			nullTime(inv.AcceptedAt),
			nullTime(inv.EndedAt),
			inv.EndReason,
		); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return Invitation{}, err
	}
	return out, nil
}

func (r *PostgresRepo) PendingFor(ctx context.Context, receiverID int, now time.Time) ([]Invitation, error) {
	const q = `
SELECT ` + invitationColumns + `
FROM call_invitations
WHERE receiver_id = $1 AND status = $2 AND expires_at > $3
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, receiverID, StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) HasActive(ctx context.Context, userID int, now time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM call_invitations
  WHERE (caller_id = $1 OR receiver_id = $1)
    AND (status = $2 OR (status = $3 AND expires_at > $4))
)
`
	var active bool
	err := r.db.QueryRowContext(ctx, q, userID, StatusAccepted, StatusPending, now).Scan(&active)
	return active, err
}

func (r *PostgresRepo) StatsFor(ctx context.Context, userID int, since time.Time) (Stats, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE caller_id = $1)                                           AS calls_made,
  COUNT(*) FILTER (WHERE receiver_id = $1)                                         AS calls_received,
  COUNT(*) FILTER (WHERE status IN ($3, $4))                                       AS calls_accepted,
  COUNT(*) FILTER (WHERE status = $5)                                              AS calls_rejected,
  COUNT(*) FILTER (WHERE status = $6)                                              AS calls_expired,
  AVG(EXTRACT(EPOCH FROM (ended_at - accepted_at)))
    FILTER (WHERE accepted_at IS NOT NULL AND ended_at IS NOT NULL)                AS avg_duration
FROM call_invitations
WHERE (caller_id = $1 OR receiver_id = $1) AND created_at >= $2
`
	st := Stats{UserID: userID}
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q,
		userID, since,
		StatusAccepted, StatusEnded, StatusRejected, StatusExpired,
	).Scan(
		&st.CallsMade,
		&st.CallsReceived,
		&st.CallsAccepted,
		&st.CallsRejected,
		&st.CallsExpired,
		&avg,
	)
	if err != nil {
		return Stats{}, err
	}
	if avg.Valid {
		v := avg.Float64
		st.AvgCallDurationSeconds = &v
	}
	return st, nil
}

func (r *PostgresRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `
DELETE FROM call_invitations
WHERE status IN ($1,$2,$3,$4) AND updated_at < $5
`
	res, err := r.db.ExecContext(ctx, q,
		StatusRejected, StatusCancelled, StatusExpired, StatusEnded, cutoff,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
