package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
)

type permissionRepository struct {
	repository
}

var _ authz.PermissionStore = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(exec core.DBExecutor) *permissionRepository {
	return &permissionRepository{repository{exec: exec}}
}

// HasPermission matches offering-wide grants, and team grants when teamID is set.
func (repo *permissionRepository) HasPermission(ctx context.Context, userID, key, offeringID, teamID string) (bool, error) {
	scope := sq.Or{sq.Eq{"team_id": ""}}
	if teamID != "" {
		scope = append(scope, sq.Eq{"team_id": teamID})
	}
	q := builder.Select("COUNT(*)").From("user_permissions").
		Where(sq.Eq{"user_id": userID, "permission_key": key, "offering_id": offeringID}).
		Where(scope)
	var n int
	if err := getQ(ctx, repo.exec, &n, q); err != nil {
		return false, errors.Wrap(err, "getQ()")
	}
	return n > 0, nil
}

func (repo *permissionRepository) Grant(ctx context.Context, userID, key, offeringID, teamID string) error {
	q := builder.Insert("user_permissions").
		Columns("user_id", "permission_key", "offering_id", "team_id").
		Values(userID, key, offeringID, teamID).
		Suffix("ON CONFLICT DO NOTHING")
	_, err := execQ(ctx, repo.exec, q)
	return errors.Wrap(err, "execQ()")
}

func (repo *permissionRepository) Revoke(ctx context.Context, userID, key, offeringID, teamID string) error {
	q := builder.Delete("user_permissions").
		Where(sq.Eq{"user_id": userID, "permission_key": key, "offering_id": offeringID, "team_id": teamID})
	_, err := execQ(ctx, repo.exec, q)
	return errors.Wrap(err, "execQ()")
}
