package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "citizenly/pkg/domain-errors"
)

// RoleName identifies a permission bundle from the immutable role catalog.
type RoleName string

const (
	// RoleBarangayAdmin is jurisdiction-scoped: at most one active admin
	// profile may reference a given barangay code.
	RoleBarangayAdmin RoleName = "barangay_admin"
	RoleStaff         RoleName = "staff"
	RoleResident      RoleName = "resident"
)

// Role is immutable reference data looked up by name during registration,
// never created by this flow.
type Role struct {
	ID          uuid.UUID
	Name        RoleName
	Permissions map[string][]string
}

// JurisdictionScoped reports whether profiles holding this role claim an
// exclusive slot in a jurisdiction.
func (r Role) JurisdictionScoped() bool {
	return r.Name == RoleBarangayAdmin
}

// ProfileStatus is the approval state of a registered profile. Transitions
// out of pending are owned by the separate approval workflow.
type ProfileStatus string

const (
	ProfileStatusPendingApproval ProfileStatus = "pending_approval"
	ProfileStatusActive          ProfileStatus = "active"
	ProfileStatusRejected        ProfileStatus = "rejected"
)

// Profile is the persisted resident/user record. Its ID is the identity
// provider's principal ID; that shared key is what the visibility wait
// protects.
type Profile struct {
	ID               uuid.UUID     `json:"id"`
	Email            string        `json:"email"`
	FirstName        string        `json:"first_name"`
	LastName         string        `json:"last_name"`
	RoleID           uuid.UUID     `json:"role_id"`
	RoleName         RoleName      `json:"role_name"`
	JurisdictionCode string        `json:"jurisdiction_code,omitempty"`
	Status           ProfileStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// SignupRequest is the validated input to registration. Credential material
// never appears in responses or logs.
type SignupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	RoleName         string `json:"role_name"`
	JurisdictionCode string `json:"jurisdiction_code,omitempty"`
}

// Normalize trims whitespace and lowercases the email.
func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.RoleName = strings.TrimSpace(r.RoleName)
	r.JurisdictionCode = strings.TrimSpace(r.JurisdictionCode)
}

// Validate rejects malformed input before any side effect. Password strength
// beyond non-emptiness is delegated to the identity provider.
func (r SignupRequest) Validate() error {
	verr := dErrors.New(dErrors.CodeValidation, "signup request is invalid")

	if r.Email == "" {
		verr.WithField("email", "is required")
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		verr.WithField("email", "must be a valid email address")
	}
	if r.Password == "" {
		verr.WithField("password", "is required")
	}
	if r.FirstName == "" {
		verr.WithField("first_name", "is required")
	}
	if r.LastName == "" {
		verr.WithField("last_name", "is required")
	}
	if r.RoleName == "" {
		verr.WithField("role_name", "is required")
	}
	if r.JurisdictionCode != "" && !isPSGCCode(r.JurisdictionCode) {
		verr.WithField("jurisdiction_code", "must be a 9 or 10 digit PSGC code")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// isPSGCCode accepts the Philippine Standard Geographic Code formats used for
// barangays (9 digits legacy, 10 digits current).
func isPSGCCode(code string) bool {
	if len(code) != 9 && len(code) != 10 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
