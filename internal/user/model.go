package user

import "time"

// Student is the profile record owned by the user service.
type Student struct {
	StudentID      string    `json:"studentID"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Faculty        string    `json:"faculty"`
	Degree         string    `json:"degree"`
	Citizenship    string    `json:"citizenship"`
	IsArcMember    bool      `json:"isArcMember"`
	GraduationYear int       `json:"graduationYear"`
	Role           string    `json:"role"`
	Points         int       `json:"points"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Roles recognized by the platform. Admin gates event mutations.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// RegisterRequest is the validated payload for account creation. It
// carries no role: every self-registered account is a student, and
// admins are promoted out of band.
type RegisterRequest struct {
	StudentID      string `json:"studentID" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Name           string `json:"name" binding:"required"`
	Faculty        string `json:"faculty" binding:"required"`
	Degree         string `json:"degree" binding:"required"`
	Citizenship    string `json:"citizenship" binding:"required"`
	IsArcMember    *bool  `json:"isArcMember" binding:"required"`
	GraduationYear int    `json:"graduationYear" binding:"required"`
	Password       string `json:"password" binding:"required,min=8"`
	EmailCode      string `json:"emailCode" binding:"required"`
}
