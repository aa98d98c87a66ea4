package users

import (
	"fmt"
	"slices"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Role is the integer role code the backend attaches to a user.
type Role int

const (
	RoleAdmin          Role = 1 // Full access, manages users and roles
	RoleRegistrar      Role = 2 // Registers students and assigns advisors
	RoleAdvisor        Role = 3 // Works with assigned students
	RoleAccountant     Role = 4 // Tracks payments for student-advisor relationships
	RoleContentManager Role = 5 // Tracks content delivery
	RoleSupervisor     Role = 6 // Runs supervision and assessment surveys
)

var roleNames = map[Role]string{
	RoleAdmin:          "admin",
	RoleRegistrar:      "registrar",
	RoleAdvisor:        "advisor",
	RoleAccountant:     "accountant",
	RoleContentManager: "content_manager",
	RoleSupervisor:     "supervisor",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is one of the known role codes.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Username     string    `json:"username,omitempty"`    // Login name
	Email        string    `json:"email,omitempty"`       // User's email address
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	Roles        []Role    `json:"roles"`                 // Role codes, in the order they were granted
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in
	Blocked      bool      `json:"blocked,omitempty"`     // Blocked, has the user been blocked from logging in
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// HasAnyRole reports whether the user holds at least one of roles.
func (u *User) HasAnyRole(roles ...Role) bool {
	return HasAnyRole(u.Roles, roles...)
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// HasAnyRole reports whether held contains at least one of wanted.
func HasAnyRole(held []Role, wanted ...Role) bool {
	for _, w := range wanted {
		if slices.Contains(held, w) {
			return true
		}
	}
	return false
}

func RolesToInts(roles []Role) []int {
	if roles == nil {
		return nil
	}
	out := make([]int, len(roles))
	for i, r := range roles {
		out[i] = int(r)
	}
	return out
}

func RolesFromInts(codes []int) []Role {
	if codes == nil {
		return nil
	}
	out := make([]Role, len(codes))
	for i, c := range codes {
		out[i] = Role(c)
	}
	return out
}
