package model

import (
	"time"

	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/utils"
)

// Roles and groups a user may carry.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// Users is the credential resource.  A user logs in with either its email
// or its phone number, so both are unique but individually optional.
var Users = schema.New("User", "users",
	schema.Field{Name: "name", Kind: schema.String,
		Rules: []schema.Rule{schema.NotEmpty()}, Example: "John Doe"},
	schema.Field{Name: "email", Kind: schema.String, Nullable: true, Unique: true,
		Rules: []schema.Rule{schema.IsEmail()}, Example: "john.doe@example.com"},
	schema.Field{Name: "phone", Kind: schema.String, Nullable: true, Unique: true,
		Rules: []schema.Rule{schema.Digits(8, 15)}, Example: "5511999999999"},
	schema.Field{Name: schema.PasswordField, Kind: schema.String,
		Rules: []schema.Rule{schema.Len(8, 72), schema.MaxBytes(utils.MaxPasswordBytes)}, Example: "Senha123!"},
	schema.Field{Name: "role", Kind: schema.Enum, Default: RoleUser,
		Values: []string{RoleAdmin, RoleModerator, RoleUser}, Example: RoleUser},
	schema.Field{Name: "group_name", Kind: schema.Enum, Nullable: true,
		Values: []string{"staff", "customer", "partner"}, Example: "customer"},
)

// Session status values.  A session moves from active to inactive once.
const (
	SessionActive   = "active"
	SessionInactive = "inactive"
)

// Session mirrors a row of the `sessions` table: the audit trail of one
// issued bearer token.
type Session struct {
	ID          uint64     `json:"id"`
	Status      string     `json:"status"`
	UserID      uint64     `json:"user_id"`
	UserName    string     `json:"user_name"`
	Token       string     `json:"-"`
	SessionID   string     `json:"session_id"` // token jti
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastCheckAt *time.Time `json:"last_check_at"`
	LogoutAt    *time.Time `json:"logout_at"`
	IP          string     `json:"ip"`
	UserAgent   string     `json:"user_agent"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the session may still authorise requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}
