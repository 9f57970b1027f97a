package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiveLeaders(t *testing.T) {
	left := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		team    Team
		members []TeamMember
		want    []string
	}{
		{
			name: "membership leaders",
			team: Team{ID: "t1"},
			members: []TeamMember{
				{UserID: "u1", Role: MemberRoleLeader},
				{UserID: "u2", Role: MemberRoleMember},
			},
			want: []string{"u1"},
		},
		{
			name: "departed leader dropped",
			team: Team{ID: "t1", LeaderIDs: []string{"u1"}},
			members: []TeamMember{
				{UserID: "u1", Role: MemberRoleLeader, LeftAt: &left},
				{UserID: "u3", Role: MemberRoleLeader},
			},
			want: []string{"u3"},
		},
		{
			name: "direct reference without membership row",
			team: Team{ID: "t1", LeaderID: "u9"},
			want: []string{"u9"},
		},
		{
			name:    "direct reference of departed member",
			team:    Team{ID: "t1", LeaderID: "u9"},
			members: []TeamMember{{UserID: "u9", Role: MemberRoleLeader, LeftAt: &left}},
			want:    []string{},
		},
		{
			name: "rejoined member counts",
			team: Team{ID: "t1", LeaderID: "u9"},
			members: []TeamMember{
				{UserID: "u9", Role: MemberRoleLeader, LeftAt: &left},
				{UserID: "u9", Role: MemberRoleMember},
			},
			want: []string{"u9"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, LiveLeaders(tt.team, tt.members))
		})
	}
}

func TestSameLeaders(t *testing.T) {
	assert.True(t, SameLeaders([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, SameLeaders(nil, []string{}))
	assert.False(t, SameLeaders([]string{"a"}, []string{"b"}))
	assert.False(t, SameLeaders([]string{"a"}, []string{"a", "b"}))
}

func TestEnrollment_Eligible(t *testing.T) {
	assert.True(t, Enrollment{CourseRole: CourseRoleStudent, Status: EnrollmentEnrolled}.Eligible())
	assert.False(t, Enrollment{CourseRole: CourseRoleTA, Status: EnrollmentEnrolled}.Eligible())
	assert.False(t, Enrollment{CourseRole: CourseRoleStudent, Status: EnrollmentDropped}.Eligible())
}
