package rewards

import (
	"context"
	"database/sql"
	"errors"

	"engage/internal/store"
)

// Sentinel errors surfaced by the redemption transaction.
var (
	ErrNoBalance    = errors.New("no balance row for student")
	ErrInsufficient = errors.New("insufficient points")
)

// Repository persists the points ledger in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Redeem decrements the balance and appends the redemption record as one
// transaction. The balance row lock serializes concurrent redemptions so
// two spends cannot both clear the same points.
func (r *Repository) Redeem(ctx context.Context, studentID string, rewardID, cost int) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var points int
		row := tx.QueryRowContext(ctx, `
			SELECT points FROM student_balances WHERE student_id = $1 FOR UPDATE
		`, studentID)
		if err := row.Scan(&points); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoBalance
			}
			return err
		}
		if points < cost {
			return ErrInsufficient
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE student_balances SET points = points - $2 WHERE student_id = $1
		`, studentID, cost); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO redemptions (student_id, reward_id, created_at)
			VALUES ($1, $2, NOW())
		`, studentID, rewardID)
		return err
	})
}

// Balance returns the student's current points, or ErrNoBalance.
func (r *Repository) Balance(ctx context.Context, studentID string) (int, error) {
	var points int
	row := r.db.QueryRowContext(ctx, `SELECT points FROM student_balances WHERE student_id = $1`, studentID)
	if err := row.Scan(&points); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoBalance
		}
		return 0, err
	}
	return points, nil
}

// Redemptions returns the student's full redemption history, newest first.
func (r *Repository) Redemptions(ctx context.Context, studentID string) ([]Redemption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, reward_id, created_at
		FROM redemptions
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Redemption
	for rows.Next() {
		var rec Redemption
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.RewardID, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
