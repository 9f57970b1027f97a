package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Store = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

// GetActiveOffering returns the most recently created active offering.
func (repo *rosterRepository) GetActiveOffering(_ context.Context, _ ...core.DBExecutor) (roster.Offering, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *offering
	for _, o := range repo.db.offerings {
		if o.IsActive && (latest == nil || o.seq > latest.seq) {
			latest = o
		}
	}
	if latest == nil {
		return roster.Offering{}, roster.ErrNoActiveOffering
	}
	return latest.Offering, nil
}

func (repo *rosterRepository) GetOffering(_ context.Context, id string, _ ...core.DBExecutor) (roster.Offering, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if o, ok := repo.db.offerings[id]; ok {
		return o.Offering, nil
	}
	return roster.Offering{}, roster.ErrOfferingNotFound
}

func (repo *rosterRepository) GetEnrollment(_ context.Context, offeringID, userID string, _ ...core.DBExecutor) (roster.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.enrollments[[2]string{offeringID, userID}]; ok {
		return *enr, nil
	}
	return roster.Enrollment{}, roster.ErrEnrollmentNotFound
}

func (repo *rosterRepository) ListEligibleStudents(_ context.Context, offeringID string, _ ...core.DBExecutor) ([]roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.eligibleStudents(offeringID), nil
}

// eligibleStudents lists the students counting for attendance, ordered by name. Callers hold the lock.
func (db *DB) eligibleStudents(offeringID string) []roster.Student {
	students := make([]roster.Student, 0)
	for key, enr := range db.enrollments {
		if key[0] != offeringID || !enr.Eligible() {
			continue
		}
		s := roster.Student{UserID: enr.UserID}
		if usr, ok := db.users[enr.UserID]; ok {
			s.Name, s.Email = usr.Name, usr.Email
		}
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].UserID < students[j].UserID
	})
	return students
}

func (repo *rosterRepository) CountEligibleStudents(ctx context.Context, offeringID string, _ ...core.DBExecutor) (int, error) {
	students, err := repo.ListEligibleStudents(ctx, offeringID)
	return len(students), err
}

func (repo *rosterRepository) GetTeam(_ context.Context, id string, _ ...core.DBExecutor) (roster.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teams[id]; ok {
		team := *t
		team.LeaderIDs = append([]string{}, t.LeaderIDs...)
		return team, nil
	}
	return roster.Team{}, roster.ErrTeamNotFound
}

func (repo *rosterRepository) ListTeamMembers(_ context.Context, teamID string, _ ...core.DBExecutor) ([]roster.TeamMember, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]roster.TeamMember, 0)
	for _, m := range repo.db.members {
		if m.TeamID == teamID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (repo *rosterRepository) SetTeamLeaders(_ context.Context, teamID string, leaderIDs []string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.teams[teamID]
	if !ok {
		return roster.ErrTeamNotFound
	}
	t.LeaderIDs = append([]string{}, leaderIDs...)
	return nil
}

func (repo *rosterRepository) CreateOffering(_ context.Context, o roster.Offering, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	repo.db.offerings[o.ID] = &offering{Offering: o, seq: repo.db.seq}
	return nil
}

func (repo *rosterRepository) Enroll(_ context.Context, e roster.Enrollment, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.enrollments[[2]string{e.OfferingID, e.UserID}] = &e
	return nil
}

func (repo *rosterRepository) CreateTeam(_ context.Context, t roster.Team, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if t.LeaderIDs == nil {
		t.LeaderIDs = []string{}
	}
	repo.db.teams[t.ID] = &t
	return nil
}

func (repo *rosterRepository) AddTeamMember(_ context.Context, m roster.TeamMember, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.members = append(repo.db.members, m)
	return nil
}

func (repo *rosterRepository) LeaveTeam(_ context.Context, teamID, userID string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, m := range repo.db.members {
		if m.TeamID == teamID && m.UserID == userID && m.LeftAt == nil {
			left := at
			repo.db.members[i].LeftAt = &left
		}
	}
	return nil
}
