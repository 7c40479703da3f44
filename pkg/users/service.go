package users

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tomebooks/tome/pkg/errcodes"
	"github.com/tomebooks/tome/pkg/models"
	"github.com/uptrace/bun"
)

// Service handles user administration. Account creation lives in pkg/auth;
// this package is the admin surface over existing accounts.
type Service struct {
	db *bun.DB
}

// NewService creates a new users service.
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Retrieve gets a user by ID, active or not.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := svc.db.NewSelect().
		Model(user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// ListOptions contains options for listing users.
type ListOptions struct {
	// Search matches name or email, case-insensitive substring.
	Search *string
	Role   *models.Role
	Page   int
	Limit  int
}

// List returns a page of users plus the total count.
func (svc *Service) List(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	users := []*models.User{}

	q := svc.db.NewSelect().
		Model(&users).
		Order("u.created_at DESC").
		Limit(opts.Limit).
		Offset((opts.Page - 1) * opts.Limit)

	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("u.name LIKE ? COLLATE NOCASE", pattern).
				WhereOr("u.email LIKE ? COLLATE NOCASE", pattern)
		})
	}
	if opts.Role != nil {
		q = q.Where("u.role = ?", *opts.Role)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

// UpdateRole changes a user's role.
func (svc *Service) UpdateRole(ctx context.Context, id int, role models.Role) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, errcodes.ValidationError(`"role" must be one of the following: "ADMIN", "USER", "MEMBER"`)
	}

	res, err := svc.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", role).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errcodes.NotFound("User")
	}

	return svc.Retrieve(ctx, id)
}

// Deactivate disables an account instead of deleting it, so booking history
// keeps its user references.
func (svc *Service) Deactivate(ctx context.Context, id int) error {
	res, err := svc.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("User")
	}
	return nil
}
