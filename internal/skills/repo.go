package skills

import (
	"context"
	"database/sql"

	"engage/internal/event"
)

// Repository reads the attendance and event weight data the analysis
// service aggregates over.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AttendedWeights returns the skill weights of every event the student
// holds an attendance record for.
func (r *Repository) AttendedWeights(ctx context.Context, studentID string) ([]event.SkillWeights, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.ec, e.lt, e.ap, e.pr, e.ac, e.ct, e.pm, e.ei, e.np, e.sm
		FROM attendance a
		JOIN events e ON e.id = a.event_id
		WHERE a.student_id = $1
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []event.SkillWeights
	for rows.Next() {
		var w event.SkillWeights
		if err := rows.Scan(&w.EC, &w.LT, &w.AP, &w.PR, &w.AC, &w.CT, &w.PM, &w.EI, &w.NP, &w.SM); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
