package authz

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
)

// PermissionService answers fine-grained capability grants. teamID may be empty.
type PermissionService interface {
	HasPermission(ctx context.Context, userID, key, offeringID, teamID string) (bool, error)
}

// PermissionStore also records grants. An empty teamID grants offering-wide.
type PermissionStore interface {
	PermissionService
	Grant(ctx context.Context, userID, key, offeringID, teamID string) error
	Revoke(ctx context.Context, userID, key, offeringID, teamID string) error
}

type Resolver struct {
	roster roster.Repository
	perms  PermissionService
	logger core.Logger
}

func NewResolver(rosterRepo roster.Repository, perms PermissionService, logger core.Logger) *Resolver {
	return &Resolver{roster: rosterRepo, perms: perms, logger: logger}
}

// Resolve builds the Actor of `p` for the offering and team of `target`.
func (r *Resolver) Resolve(ctx context.Context, p Principal, target Target) (Actor, error) {
	actor := Actor{UserID: p.ID, Role: RoleStudent, Capabilities: make(map[Capability]bool)}

	offering, err := r.roster.GetOffering(ctx, target.OfferingID)
	if err != nil {
		return Actor{}, errors.Wrap(err, "roster.GetOffering()")
	}
	if core.Contains(p.Roles, user.RoleAdmin) || offering.InstructorID == p.ID {
		actor.Role = RoleInstructor
		return actor, nil
	}

	if target.TeamID != "" {
		leaders, err := r.syncLeaders(ctx, target.TeamID)
		if err != nil {
			return Actor{}, err
		}
		if core.Contains(leaders, p.ID) {
			actor.Role = RoleTeamLeader
			actor.LedTeams = []string{target.TeamID}
		}
	}

	for _, c := range AllCapabilities {
		ok, err := r.perms.HasPermission(ctx, p.ID, string(c), target.OfferingID, target.TeamID)
		if err != nil {
			return Actor{}, errors.Wrap(err, "perms.HasPermission()")
		}
		actor.Capabilities[c] = ok
	}
	return actor, nil
}

// syncLeaders re-derives the team's leaders from its memberships and repairs the cached list when it drifted.
func (r *Resolver) syncLeaders(ctx context.Context, teamID string) ([]string, error) {
	team, err := r.roster.GetTeam(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "roster.GetTeam()")
	}
	members, err := r.roster.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "roster.ListTeamMembers()")
	}
	leaders := roster.LiveLeaders(team, members)
	if !roster.SameLeaders(leaders, team.LeaderIDs) {
		if err := r.roster.SetTeamLeaders(ctx, teamID, leaders); err != nil {
			return nil, errors.Wrap(err, "roster.SetTeamLeaders()")
		}
		r.logger.Info(fmt.Sprintf("resynced leaders of team %s: %v -> %v", teamID, team.LeaderIDs, leaders))
	}
	return leaders, nil
}

// Authorize resolves `p` and returns ErrForbidden when the decision denies `action`.
func (r *Resolver) Authorize(ctx context.Context, p Principal, target Target, action Action) (Decision, error) {
	actor, err := r.Resolve(ctx, p, target)
	if err != nil {
		return Decision{}, err
	}
	d := Decide(actor, target, action)
	if !d.Allowed {
		r.logger.Debug(fmt.Sprintf("denied %s to %s: %s", action, p.ID, d.Reason))
		return d, ErrForbidden
	}
	return d, nil
}
