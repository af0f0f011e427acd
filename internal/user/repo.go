package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"engage/internal/store"
)

// Repository persists students and their login credentials in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EmailExists reports whether an account already uses the email.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE email = $1`, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// StudentIDExists reports whether the student id is already taken.
func (r *Repository) StudentIDExists(ctx context.Context, studentID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE student_id = $1`, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateAccount inserts the student profile, the credential row, and the
// zero-point balance row as one transaction.
func (r *Repository) CreateAccount(ctx context.Context, st Student, passwordHash string) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO students
				(student_id, email, name, faculty, degree, citizenship, is_arc_member, graduation_year, role, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, st.StudentID, st.Email, st.Name, st.Faculty, st.Degree, st.Citizenship,
			st.IsArcMember, st.GraduationYear, st.Role, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (student_id, email, password_hash, role)
			VALUES ($1,$2,$3,$4)
		`, st.StudentID, st.Email, passwordHash, st.Role); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO student_balances (student_id, points) VALUES ($1, 0)
		`, st.StudentID)
		return err
	})
}

// Credentials is the login row for one account.
type Credentials struct {
	StudentID    string
	Email        string
	PasswordHash string
	Role         string
}

// GetCredentials returns the login row for an email, or nil when absent.
func (r *Repository) GetCredentials(ctx context.Context, email string) (*Credentials, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, email, password_hash, role FROM credentials WHERE email = $1
	`, email)
	var c Credentials
	if err := row.Scan(&c.StudentID, &c.Email, &c.PasswordHash, &c.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdatePassword replaces the stored password hash for an email.
func (r *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET password_hash = $2 WHERE email = $1
	`, email, passwordHash)
	return err
}

// GetStudent returns a student profile with the current point balance,
// or nil when absent.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.student_id, s.email, s.name, s.faculty, s.degree, s.citizenship,
			s.is_arc_member, s.graduation_year, s.role, COALESCE(b.points, 0), s.created_at
		FROM students s
		LEFT JOIN student_balances b ON b.student_id = s.student_id
		WHERE s.student_id = $1
	`, studentID)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}

// ListStudents returns every student profile ordered by student id.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.email, s.name, s.faculty, s.degree, s.citizenship,
			s.is_arc_member, s.graduation_year, s.role, COALESCE(b.points, 0), s.created_at
		FROM students s
		LEFT JOIN student_balances b ON b.student_id = s.student_id
		ORDER BY s.student_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var st Student
	if err := row.Scan(
		&st.StudentID, &st.Email, &st.Name, &st.Faculty, &st.Degree, &st.Citizenship,
		&st.IsArcMember, &st.GraduationYear, &st.Role, &st.Points, &st.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &st, nil
}
