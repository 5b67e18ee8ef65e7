package groups

import (
	"context"

	"go.uber.org/zap"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
)

// Service exposes the group roster: membership listing, lead resolution and
// the membership mutations that keep the denormalized member_ids array in
// sync (the repository performs both writes in one transaction).
type Service struct {
	groups repository.GroupRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func New(groups repository.GroupRepository, users repository.UserRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		groups: groups,
		users:  users,
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	return s.groups.GetByID(ctx, groupID)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Group, error) {
	return s.groups.List(ctx, activeOnly)
}

func (s *Service) Create(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	if group == nil || group.Name == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "group name is required")
	}
	group.Active = true
	return s.groups.Create(ctx, group)
}

func (s *Service) ListActiveMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	return s.groups.ListActiveMembers(ctx, groupID)
}

// IsLead reports whether the user is an active lead of the group.
func (s *Service) IsLead(ctx context.Context, userID, groupID string) (bool, error) {
	member, err := s.groups.GetMember(ctx, groupID, userID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Lead, nil
}

// GroupsOf returns the ids of the active groups the user belongs to.
func (s *Service) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	return s.groups.GroupsOf(ctx, userID)
}

// LeadOf returns the ids of the groups the user leads, for the verification
// queue predicate.
func (s *Service) LeadOf(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.groups.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	var lead []string
	for _, id := range ids {
		member, err := s.groups.GetMember(ctx, id, userID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				continue
			}
			return nil, err
		}
		if member.Lead {
			lead = append(lead, id)
		}
	}
	return lead, nil
}

// AddMember joins a user to a group, denormalizing their display name from
// the users table when the caller left it empty.
func (s *Service) AddMember(ctx context.Context, groupID, userID string, lead bool) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsActive() {
		return domain.ErrGroupInactive
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	return s.groups.AddMember(ctx, &domain.Member{
		GroupID:     groupID,
		UserID:      userID,
		DisplayName: user.DisplayName,
		Lead:        lead,
		Active:      true,
	})
}

func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	return s.groups.RemoveMember(ctx, groupID, userID)
}

func (s *Service) SetLead(ctx context.Context, groupID, userID string, lead bool) error {
	return s.groups.SetLead(ctx, groupID, userID, lead)
}
