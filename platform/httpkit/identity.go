// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RoleAdmin is the role that may apply restricted actions directly and
// resolve approval requests. Everyone else routes through the gateway.
const RoleAdmin = "admin"

// Identity represents the authenticated user's identity.
// Handlers use this instead of reaching into Gin context keys directly.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// AgencyID returns the tenant agency the user belongs to.
	AgencyID() uuid.UUID
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAdmin reports whether the user carries the admin role.
	IsAdmin() bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	agencyID      uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID {
	return i.userID
}

func (i *identity) AgencyID() uuid.UUID {
	return i.agencyID
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userIDValue, userOK := c.Get(ContextUserIDKey)
	agencyIDValue, agencyOK := c.Get(ContextAgencyIDKey)
	rolesValue, _ := c.Get(ContextRolesKey)

	if !userOK || !agencyOK {
		return &identity{authenticated: false}
	}

	userID, ok := userIDValue.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}
	agencyID, ok := agencyIDValue.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	roles, _ := rolesValue.([]string)

	return &identity{
		userID:        userID,
		agencyID:      agencyID,
		roles:         roles,
		authenticated: true,
	}
}

// RequireIdentity extracts the Identity and aborts with 401 when missing.
// Returns nil after aborting.
func RequireIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
