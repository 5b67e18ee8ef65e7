package domain

import "time"

// Group is an organizational unit tasks can be routed to.
//
// MemberIDs is denormalized from the group_members rows and must always equal
// the set of active memberships; every membership mutation updates both inside
// a single transaction.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (g *Group) IsActive() bool {
	return g != nil && g.Active
}

// Member is one group membership row.
type Member struct {
	GroupID     string    `json:"group_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Lead        bool      `json:"lead"`
	Active      bool      `json:"active"`
	JoinedAt    time.Time `json:"joined_at"`
}
