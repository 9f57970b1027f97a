package dummydb

import (
	"context"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
)

type permissionRepository struct {
	db *DB
}

var _ authz.PermissionStore = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *DB) *permissionRepository {
	return &permissionRepository{db: db}
}

func (repo *permissionRepository) HasPermission(_ context.Context, userID, key, offeringID, teamID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.permissions[permissionKey{userID, key, offeringID, ""}] {
		return true, nil
	}
	return teamID != "" && repo.db.permissions[permissionKey{userID, key, offeringID, teamID}], nil
}

func (repo *permissionRepository) Grant(_ context.Context, userID, key, offeringID, teamID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.permissions[permissionKey{userID, key, offeringID, teamID}] = true
	return nil
}

func (repo *permissionRepository) Revoke(_ context.Context, userID, key, offeringID, teamID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.permissions, permissionKey{userID, key, offeringID, teamID})
	return nil
}
