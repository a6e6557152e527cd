package service

import "github.com/Skotchmaster/storefront/internal/models"

// Actor is the authenticated back-office caller.
type Actor struct {
	ID   uint
	Role models.Role
}

// CanManage reports whether the actor may edit p. Admins manage every
// product; sellers only the ones they listed.
func (a Actor) CanManage(p *models.Product) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleSeller:
		return p.SellerID != nil && *p.SellerID == a.ID
	}
	return false
}
