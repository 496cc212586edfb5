// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// UserRole is the "rol" claim of an access token.
type UserRole string

const (
	// RoleMember may read and edit mappings.
	RoleMember UserRole = "member"

	// RoleAdmin may additionally resynchronise from the external feed.
	RoleAdmin UserRole = "admin"
)

// roleRank orders the roles; unknown roles rank zero.
var roleRank = map[UserRole]int{
	RoleMember: 1,
	RoleAdmin:  2,
}

// AtLeast reports whether r ranks at or above target.
func (r UserRole) AtLeast(target UserRole) bool {
	return roleRank[r] >= roleRank[target]
}
