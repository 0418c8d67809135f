package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan is a tenant's subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// Role is a user's role within their tenant. Roles are compared exactly;
// admin does not imply member.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Tenant is an isolated customer organization.
// Plan only ever moves from free to pro.
type Tenant struct {
	ID        TenantID  `gorm:"type:uuid;primary_key" json:"id"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"not null" json:"name"`
	Plan      Plan      `gorm:"type:text;not null;default:free" json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsZero() {
		t.ID = NewTenantID()
	}
	if t.Plan == "" {
		t.Plan = PlanFree
	}
	return nil
}

// User is an account inside a tenant. PasswordHash is a bcrypt hash and never
// leaves the server.
type User struct {
	ID           UserID    `gorm:"type:uuid;primary_key" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:text;not null" json:"role"`
	TenantID     TenantID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant       *Tenant   `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}

// Note is a tenant-scoped text record. AuthorEmail is filled by reads that
// join the owning user and is not a column.
type Note struct {
	ID          NoteID    `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    TenantID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant      *Tenant   `gorm:"foreignKey:TenantID" json:"-"`
	UserID      UserID    `gorm:"type:uuid;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"-"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"type:text;not null;default:''" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AuthorEmail string    `gorm:"->;-:migration" json:"author_email,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID.IsZero() {
		n.ID = NewNoteID()
	}
	return nil
}

// NotePatch is a partial note update. A nil field is left unchanged.
type NotePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil
}

// Apply copies the supplied fields onto n.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
}
