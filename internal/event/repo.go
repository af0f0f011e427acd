package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"engage/internal/store"
)

// Sentinel errors surfaced by the transactional attendance paths. The
// service layer maps them onto the error taxonomy.
var (
	ErrDuplicateTicket  = errors.New("already registered for event")
	ErrNoRegistration   = errors.New("no registration for event")
	ErrAlreadyCheckedIn = errors.New("already checked in")
)

const eventColumns = `id, name, location, external_link, start_time, end_time,
	summary, description, tag, organizer, image_url,
	ec, lt, ap, pr, ac, ct, pm, ei, np, sm`

// Repository persists events, attendance records, and the point side of
// check-ins in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertEvent writes a new catalog entry and returns its id.
func (r *Repository) InsertEvent(ctx context.Context, e Event) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (
			name, location, external_link, start_time, end_time,
			summary, description, tag, organizer, image_url,
			ec, lt, ap, pr, ac, ct, pm, ei, np, sm
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id
	`, e.Name, e.Location, e.ExternalLink, e.StartTime, e.EndTime,
		e.Summary, e.Description, e.Tag, e.Organizer, e.ImageURL,
		e.Skills.EC, e.Skills.LT, e.Skills.AP, e.Skills.PR, e.Skills.AC,
		e.Skills.CT, e.Skills.PM, e.Skills.EI, e.Skills.NP, e.Skills.SM)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetEvent returns a single event, or nil when it does not exist.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// UpdateEvent applies a partial update. Only non-nil fields change; an
// empty ImageURL pointer clears the stored reference.
func (r *Repository) UpdateEvent(ctx context.Context, id int64, upd Update) (bool, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		sets = append(sets, col+" = $"+itoa(len(args)+1))
		args = append(args, val)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.ExternalLink != nil {
		add("external_link", *upd.ExternalLink)
	}
	if upd.StartTime != nil {
		add("start_time", *upd.StartTime)
	}
	if upd.EndTime != nil {
		add("end_time", *upd.EndTime)
	}
	if upd.Summary != nil {
		add("summary", *upd.Summary)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Tag != nil {
		add("tag", *upd.Tag)
	}
	if upd.Organizer != nil {
		add("organizer", *upd.Organizer)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}
	if upd.Skills != nil {
		w := *upd.Skills
		add("ec", w.EC)
		add("lt", w.LT)
		add("ap", w.AP)
		add("pr", w.PR)
		add("ac", w.AC)
		add("ct", w.CT)
		add("pm", w.PM)
		add("ei", w.EI)
		add("np", w.NP)
		add("sm", w.SM)
	}
	if len(sets) == 0 {
		return false, nil
	}
	query := "UPDATE events SET " + joinClauses(sets, ", ") + " WHERE id = $" + itoa(len(args)+1)
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteEvent removes an event and its attendance records in one
// transaction, returning the stored image reference so the caller can
// destroy the media.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) (imageURL string, found bool, err error) {
	err = store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT image_url FROM events WHERE id = $1 FOR UPDATE`, id)
		if err := row.Scan(&imageURL); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE event_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
		return err
	})
	return imageURL, found, err
}

// ListEvents returns one page of events with time filter, name search,
// and tag match, newest start time first, plus the unpaginated total.
func (r *Repository) ListEvents(ctx context.Context, filter ListFilter, search, tag string, page int, now time.Time) ([]Event, int, error) {
	clauses := []string{}
	args := []any{}
	switch filter {
	case FilterCurrent:
		clauses = append(clauses, "start_time <= $"+itoa(len(args)+1)+" AND end_time >= $"+itoa(len(args)+2))
		args = append(args, now, now)
	case FilterPrevious:
		clauses = append(clauses, "end_time < $"+itoa(len(args)+1))
		args = append(args, now)
	case FilterUpcoming:
		clauses = append(clauses, "start_time > $"+itoa(len(args)+1))
		args = append(args, now)
	}
	if search != "" {
		clauses = append(clauses, "name ILIKE $"+itoa(len(args)+1))
		args = append(args, "%"+search+"%")
	}
	if tag != "" {
		clauses = append(clauses, "tag ILIKE $"+itoa(len(args)+1))
		args = append(args, "%"+tag+"%")
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + joinClauses(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + eventColumns + " FROM events" + where +
		" ORDER BY start_time DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, PageSize, (page-1)*PageSize)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// InsertTicket creates a Registered attendance record. The unique index
// on (student_id, event_id) makes concurrent duplicates lose cleanly.
func (r *Repository) InsertTicket(ctx context.Context, studentID string, eventID int64) (Ticket, error) {
	t := Ticket{
		TicketID:  uuid.NewString(),
		StudentID: studentID,
		EventID:   eventID,
		CreatedAt: time.Now().UTC(),
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (ticket_id, student_id, event_id, checked_in, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (student_id, event_id) DO NOTHING
	`, t.TicketID, t.StudentID, t.EventID, t.CreatedAt)
	if err != nil {
		return Ticket{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Ticket{}, err
	}
	if n == 0 {
		return Ticket{}, ErrDuplicateTicket
	}
	return t, nil
}

// CheckIn flips the attendance flag and credits the award to the
// student's balance as one transaction. The row lock serializes
// concurrent check-ins for the same pair so points are awarded once.
func (r *Repository) CheckIn(ctx context.Context, studentID string, eventID int64) (int, error) {
	var award int
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var checkedIn bool
		row := tx.QueryRowContext(ctx, `
			SELECT checked_in FROM attendance
			WHERE student_id = $1 AND event_id = $2
			FOR UPDATE
		`, studentID, eventID)
		if err := row.Scan(&checkedIn); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoRegistration
			}
			return err
		}
		if checkedIn {
			return ErrAlreadyCheckedIn
		}

		var w SkillWeights
		row = tx.QueryRowContext(ctx, `
			SELECT ec, lt, ap, pr, ac, ct, pm, ei, np, sm FROM events WHERE id = $1
		`, eventID)
		if err := row.Scan(&w.EC, &w.LT, &w.AP, &w.PR, &w.AC, &w.CT, &w.PM, &w.EI, &w.NP, &w.SM); err != nil {
			return err
		}
		award = w.Total()

		if _, err := tx.ExecContext(ctx, `
			UPDATE attendance SET checked_in = TRUE
			WHERE student_id = $1 AND event_id = $2
		`, studentID, eventID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO student_balances (student_id, points)
			VALUES ($1, $2)
			ON CONFLICT (student_id) DO UPDATE SET points = student_balances.points + EXCLUDED.points
		`, studentID, award)
		return err
	})
	if err != nil {
		return 0, err
	}
	return award, nil
}

// ListForStudent returns one page of the student's events joined with
// their attendance state, newest start time first, plus the total.
func (r *Repository) ListForStudent(ctx context.Context, studentID string, filter ListFilter, page int, now time.Time) ([]StudentEvent, int, error) {
	clauses := []string{"a.student_id = $1"}
	args := []any{studentID}
	switch filter {
	case FilterCurrent:
		clauses = append(clauses, "e.start_time <= $"+itoa(len(args)+1)+" AND e.end_time >= $"+itoa(len(args)+2))
		args = append(args, now, now)
	case FilterPrevious:
		clauses = append(clauses, "e.end_time < $"+itoa(len(args)+1))
		args = append(args, now)
	case FilterUpcoming:
		clauses = append(clauses, "e.start_time > $"+itoa(len(args)+1))
		args = append(args, now)
	}
	where := " WHERE " + joinClauses(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM attendance a JOIN events e ON e.id = a.event_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT e.id, e.name, e.location, e.external_link, e.start_time, e.end_time,
			e.summary, e.description, e.tag, e.organizer, e.image_url,
			e.ec, e.lt, e.ap, e.pr, e.ac, e.ct, e.pm, e.ei, e.np, e.sm,
			a.ticket_id, a.checked_in
		FROM attendance a JOIN events e ON e.id = a.event_id` + where +
		` ORDER BY e.start_time DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, PageSize, (page-1)*PageSize)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []StudentEvent
	for rows.Next() {
		var se StudentEvent
		if err := rows.Scan(
			&se.ID, &se.Name, &se.Location, &se.ExternalLink, &se.StartTime, &se.EndTime,
			&se.Summary, &se.Description, &se.Tag, &se.Organizer, &se.ImageURL,
			&se.Skills.EC, &se.Skills.LT, &se.Skills.AP, &se.Skills.PR, &se.Skills.AC,
			&se.Skills.CT, &se.Skills.PM, &se.Skills.EI, &se.Skills.NP, &se.Skills.SM,
			&se.TicketID, &se.CheckedIn,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, se)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	if err := row.Scan(
		&e.ID, &e.Name, &e.Location, &e.ExternalLink, &e.StartTime, &e.EndTime,
		&e.Summary, &e.Description, &e.Tag, &e.Organizer, &e.ImageURL,
		&e.Skills.EC, &e.Skills.LT, &e.Skills.AP, &e.Skills.PR, &e.Skills.AC,
		&e.Skills.CT, &e.Skills.PM, &e.Skills.EI, &e.Skills.NP, &e.Skills.SM,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
