package repository

import (
	"context"

	"github.com/orgdesk/backend/domain"
)

type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Group, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Group, error)
	Create(ctx context.Context, group *domain.Group) (*domain.Group, error)

	// ListActiveMembers returns the active roster of a group in join order.
	ListActiveMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	// GetMember returns the membership row for one user, ErrGroupNotFound when
	// the user is not an active member.
	GetMember(ctx context.Context, groupID, userID string) (*domain.Member, error)
	// GroupsOf returns the ids of the active groups the user belongs to.
	GroupsOf(ctx context.Context, userID string) ([]string, error)

	// AddMember, RemoveMember and SetLead mutate the membership rows and the
	// denormalized member_ids array on the groups row inside one transaction.
	AddMember(ctx context.Context, member *domain.Member) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	SetLead(ctx context.Context, groupID, userID string, lead bool) error
}
