package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
)

type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository returns a Postgres-backed implementation of GroupRepository.
func NewGroupRepository(pool *pgxpool.Pool) repository.GroupRepository {
	return &groupRepository{pool: pool}
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	const query = `
	SELECT id, name, active, member_ids, created_at, updated_at
	FROM groups
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanGroup(row)
}

func (r *groupRepository) List(ctx context.Context, activeOnly bool) ([]domain.Group, error) {
	const query = `
	SELECT id, name, active, member_ids, created_at, updated_at
	FROM groups
	WHERE (NOT $1 OR active)
	ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

func (r *groupRepository) Create(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	if group == nil || group.Name == "" {
		return nil, domain.ErrInvalidPayload
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if group.MemberIDs == nil {
		group.MemberIDs = []string{}
	}

	const query = `
	INSERT INTO groups (id, name, active, member_ids)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		group.ID,
		group.Name,
		group.Active,
		group.MemberIDs,
	).Scan(&group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *groupRepository) ListActiveMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	const query = `
	SELECT group_id, user_id, display_name, lead, active, joined_at
	FROM group_members
	WHERE group_id = $1 AND active
	ORDER BY joined_at
	`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.DisplayName, &m.Lead, &m.Active, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *groupRepository) GetMember(ctx context.Context, groupID, userID string) (*domain.Member, error) {
	const query = `
	SELECT group_id, user_id, display_name, lead, active, joined_at
	FROM group_members
	WHERE group_id = $1 AND user_id = $2 AND active
	`
	var m domain.Member
	if err := r.pool.QueryRow(ctx, query, groupID, userID).Scan(
		&m.GroupID, &m.UserID, &m.DisplayName, &m.Lead, &m.Active, &m.JoinedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *groupRepository) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	const query = `
	SELECT gm.group_id
	FROM group_members gm
	JOIN groups g ON g.id = gm.group_id
	WHERE gm.user_id = $1 AND gm.active AND g.active
	ORDER BY gm.group_id
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddMember inserts (or reactivates) the membership row and rebuilds the
// denormalized member_ids array on the groups row in the same transaction, so
// the two can never drift apart.
func (r *groupRepository) AddMember(ctx context.Context, member *domain.Member) error {
	if member == nil || member.GroupID == "" || member.UserID == "" {
		return domain.ErrInvalidPayload
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		const upsert = `
		INSERT INTO group_members (group_id, user_id, display_name, lead, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (group_id, user_id)
		DO UPDATE SET display_name = EXCLUDED.display_name, lead = EXCLUDED.lead, active = TRUE
		`
		if _, err := tx.Exec(ctx, upsert, member.GroupID, member.UserID, member.DisplayName, member.Lead); err != nil {
			return err
		}
		return syncMemberIDs(ctx, tx, member.GroupID)
	})
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		const deactivate = `
		UPDATE group_members SET active = FALSE
		WHERE group_id = $1 AND user_id = $2
		`
		tag, err := tx.Exec(ctx, deactivate, groupID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrGroupNotFound
		}
		return syncMemberIDs(ctx, tx, groupID)
	})
}

func (r *groupRepository) SetLead(ctx context.Context, groupID, userID string, lead bool) error {
	const query = `
	UPDATE group_members SET lead = $3
	WHERE group_id = $1 AND user_id = $2 AND active
	`
	tag, err := r.pool.Exec(ctx, query, groupID, userID, lead)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (r *groupRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func syncMemberIDs(ctx context.Context, tx pgx.Tx, groupID string) error {
	const query = `
	UPDATE groups
	SET member_ids = COALESCE(
		(SELECT array_agg(user_id ORDER BY joined_at) FROM group_members WHERE group_id = $1 AND active),
		'{}'
	),
	updated_at = NOW()
	WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, groupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func scanGroup(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Group, error) {
	var group domain.Group
	if err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Active,
		&group.MemberIDs,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	if group.MemberIDs == nil {
		group.MemberIDs = []string{}
	}
	return &group, nil
}
