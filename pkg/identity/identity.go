package identity

import "context"

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// Identity is the asserted caller of an operation.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (i Identity) IsAdmin() bool      { return i.Role == RoleAdmin }
func (i Identity) IsTechnician() bool { return i.Role == RoleTechnician }
func (i Identity) IsCustomer() bool   { return i.Role == RoleCustomer }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// System is the actor recorded for transitions made by background jobs.
var System = Identity{UserID: "system", Role: "system"}
