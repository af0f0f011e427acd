package user

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"

	"engage/internal/apperr"
	"engage/internal/queue"
	"engage/internal/verify"
)

// ErrInvalidCredentials is returned on login failure. It deliberately
// covers both unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Store is the persistence surface the service drives. *Repository
// implements it; tests substitute fakes.
type Store interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	StudentIDExists(ctx context.Context, studentID string) (bool, error)
	CreateAccount(ctx context.Context, st Student, passwordHash string) error
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
}

// Codes is the TTL-backed verification-code collaborator.
type Codes interface {
	Put(ctx context.Context, email, code string) error
	Verify(ctx context.Context, email, code string) (bool, error)
	Delete(ctx context.Context, email string) error
}

// Service owns account creation, login, and password recovery.
type Service struct {
	store Store
	codes Codes
	mailQ queue.Queue
}

// NewService creates a service.
func NewService(store Store, codes Codes, mailQ queue.Queue) *Service {
	return &Service{store: store, codes: codes, mailQ: mailQ}
}

// Register creates a new account after checking the email verification
// code and uniqueness of email and student id.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	ok, err := s.codes.Verify(ctx, req.Email, req.EmailCode)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "register", err)
	}
	if !ok {
		return apperr.New(apperr.Invalid, "invalid or expired email verification code")
	}

	if exists, err := s.store.EmailExists(ctx, req.Email); err != nil {
		return apperr.Wrap(apperr.Internal, "register", err)
	} else if exists {
		return apperr.New(apperr.Conflict, "email already exists")
	}
	if exists, err := s.store.StudentIDExists(ctx, req.StudentID); err != nil {
		return apperr.Wrap(apperr.Internal, "register", err)
	} else if exists {
		return apperr.New(apperr.Conflict, "student id already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "register", err)
	}

	st := Student{
		StudentID:      req.StudentID,
		Email:          req.Email,
		Name:           req.Name,
		Faculty:        req.Faculty,
		Degree:         req.Degree,
		Citizenship:    req.Citizenship,
		IsArcMember:    req.IsArcMember != nil && *req.IsArcMember,
		GraduationYear: req.GraduationYear,
		Role:           RoleStudent,
	}
	if err := s.store.CreateAccount(ctx, st, string(hash)); err != nil {
		return apperr.Wrap(apperr.Internal, "register", err)
	}

	if err := s.codes.Delete(ctx, req.Email); err != nil {
		log.Printf("user: drop used code for %s failed: %v", req.Email, err)
	}
	return nil
}

// Login checks the password and returns the account's identity.
func (s *Service) Login(ctx context.Context, email, password string) (studentID, role string, err error) {
	creds, err := s.store.GetCredentials(ctx, email)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Internal, "login", err)
	}
	if creds == nil {
		return "", "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}
	return creds.StudentID, creds.Role, nil
}

// SendRegistrationCode emails a code to a not-yet-registered address.
func (s *Service) SendRegistrationCode(ctx context.Context, email string) error {
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "send code", err)
	}
	if exists {
		return apperr.New(apperr.Conflict, "this email is already registered")
	}
	return s.issueCode(ctx, email, "registration")
}

// SendResetCode emails a code to an already-registered address.
func (s *Service) SendResetCode(ctx context.Context, email string) error {
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "send code", err)
	}
	if !exists {
		return apperr.New(apperr.NotFound, "email is not registered")
	}
	return s.issueCode(ctx, email, "password_reset")
}

// ResetPassword verifies the emailed code and replaces the password.
// The new password must differ from the old one.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ok, err := s.codes.Verify(ctx, email, code)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "reset password", err)
	}
	if !ok {
		return apperr.New(apperr.Invalid, "invalid or expired verification code")
	}

	creds, err := s.store.GetCredentials(ctx, email)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "reset password", err)
	}
	if creds == nil {
		return apperr.New(apperr.NotFound, "email not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(newPassword)) == nil {
		return apperr.New(apperr.Invalid, "new password cannot be the same as the old password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "reset password", err)
	}
	if err := s.store.UpdatePassword(ctx, email, string(hash)); err != nil {
		return apperr.Wrap(apperr.Internal, "reset password", err)
	}
	if err := s.codes.Delete(ctx, email); err != nil {
		log.Printf("user: drop used code for %s failed: %v", email, err)
	}
	return nil
}

// GetStudent returns one student profile.
func (s *Service) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get student", err)
	}
	if st == nil {
		return nil, apperr.New(apperr.NotFound, "student not found")
	}
	return st, nil
}

// ListStudents returns every student profile (admin view).
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	out, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list students", err)
	}
	return out, nil
}

func (s *Service) issueCode(ctx context.Context, email, purpose string) error {
	code := verify.Generate()
	if err := s.codes.Put(ctx, email, code); err != nil {
		return apperr.Wrap(apperr.Internal, "store code", err)
	}
	if err := queue.PublishEmail(ctx, s.mailQ, queue.EmailJob{Email: email, Code: code, Purpose: purpose}); err != nil {
		return apperr.Wrap(apperr.Internal, "queue email", err)
	}
	return nil
}
