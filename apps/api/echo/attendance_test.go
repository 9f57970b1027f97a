package echoapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/session"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/stats"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/user"
	testutil "github.com/Team04-UCSD-CSE210/conductor-app-sub001/tests"
)

func Test_attendanceApi(t *testing.T) {
	testutil.PinClock(t, morning)
	server, app := setup(t)
	c := app.CreateCourse(t, "UTC", 3)
	instructorToken := getToken(t, app, c.Instructor)
	leaderToken := getToken(t, app, c.Leader)
	tokens := make([]string, len(c.Students))
	for i, s := range c.Students {
		tokens[i] = getToken(t, app, s)
	}
	outsider := app.CreateUser(t, "Eve", "eve@ucsd.edu", "", "", user.RoleStudent)

	sess, err := app.Sessions.Create(context.Background(), session.NewSession{
		OfferingID:  c.Offering.ID,
		Title:       "Lecture 2",
		SessionDate: "2025-01-15",
		SessionTime: "08:55",
	}, authz.NewPrincipal(c.Instructor))
	require.NoError(t, err)
	require.Equal(t, session.StateOpen, sess.State())

	checkIn := []byte(`{"access_code":"` + sess.AccessCode + `"}`)
	sessPath := "/v1/attendance/sessions/" + sess.ID

	tests := []httpTest{
		{name: "check-in: auth required", method: http.MethodPost, path: "/v1/attendance/check-in", body: checkIn, wantCode: http.StatusUnauthorized},
		{
			name: "check-in: malformed code", method: http.MethodPost, path: "/v1/attendance/check-in", token: tokens[0],
			body: []byte(`{"access_code":"abc"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "invalid access code", Kind: "invalid_code"}),
		},
		{
			name: "check-in: lowercase code", method: http.MethodPost, path: "/v1/attendance/check-in", token: tokens[0],
			body: []byte(`{"access_code":"` + strings.ToLower(sess.AccessCode) + `"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "invalid access code", Kind: "invalid_code"}),
		},
		{
			name: "check-in: unknown code", method: http.MethodPost, path: "/v1/attendance/check-in", token: tokens[0],
			body: []byte(`{"access_code":"ZZZZZZ"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "invalid access code", Kind: "invalid_code"}),
		},
		{
			name: "check-in: not enrolled", method: http.MethodPost, path: "/v1/attendance/check-in", token: getToken(t, app, outsider),
			body: checkIn, wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "not enrolled as a student in this course", Kind: "not_enrolled"}),
		},
		{name: "check-in", method: http.MethodPost, path: "/v1/attendance/check-in", token: tokens[0], body: checkIn, wantCode: http.StatusOK},
		{name: "check-in: again", method: http.MethodPost, path: "/v1/attendance/check-in", token: tokens[0], body: checkIn, wantCode: http.StatusOK},
		{name: "rows: student", path: sessPath, token: tokens[1], wantCode: http.StatusForbidden},
		{name: "stats: student", path: sessPath + "/stats", token: tokens[1], wantCode: http.StatusForbidden},
		{
			name: "mark: leader on a course-wide session", method: http.MethodPost, path: "/v1/attendance/mark", token: leaderToken,
			body: []byte(`{"session_id":"` + sess.ID + `","user_id":"` + c.Students[1].ID + `","status":"present"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "mark: bad status", method: http.MethodPost, path: "/v1/attendance/mark", token: instructorToken,
			body:     []byte(`{"session_id":"` + sess.ID + `","user_id":"` + c.Students[1].ID + `","status":"sleeping"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"error":"validation failed","kind":"validation","fields":{"status":"status must be one of present, absent, late or excused"}}`),
		},
		{
			name: "mark", method: http.MethodPost, path: "/v1/attendance/mark", token: instructorToken,
			body: []byte(`{"session_id":"` + sess.ID + `","user_id":"` + c.Students[1].ID + `","status":"excused"}`), wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, server, tests)

	t.Run("rows", func(t *testing.T) {
		rec := do(server, http.MethodGet, sessPath, instructorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []attendance.Attendance
		unmarshall(t, rec, &rows)
		require.Len(t, rows, 2)
	})

	t.Run("late check-in", func(t *testing.T) {
		testutil.PinClock(t, morning.Add(20*time.Minute))
		rec := do(server, http.MethodPost, "/v1/attendance/check-in", tokens[2], checkIn)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var att attendance.Attendance
		unmarshall(t, rec, &att)
		assert.Equal(t, attendance.StatusLate, att.Status)
	})

	t.Run("close and mark absent", func(t *testing.T) {
		rec := do(server, http.MethodPost, sessPath+"/close-and-mark-absent", instructorToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report session.CloseReport
		unmarshall(t, rec, &report)
		assert.Equal(t, 0, report.MarkedAbsent)
		assert.Equal(t, session.StateClosed, report.Session.State())

		rec = do(server, http.MethodPost, "/v1/attendance/check-in", tokens[0], checkIn)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var herr httpErr
		unmarshall(t, rec, &herr)
		assert.Equal(t, "attendance_closed", herr.Kind)
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(server, http.MethodGet, sessPath+"/stats", instructorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var st stats.SessionStats
		unmarshall(t, rec, &st)
		assert.Equal(t, stats.Counts{Present: 1, Late: 1, Excused: 1}, st.Counts)
		assert.Equal(t, 3, st.Enrolled)
		require.NotNil(t, st.Percentage)
		assert.Equal(t, 33.33, *st.Percentage)

		path := "/v1/attendance/offerings/" + c.Offering.ID + "/users/" + c.Students[2].ID + "/stats"
		rec = do(server, http.MethodGet, path, tokens[2])
		require.Equal(t, http.StatusOK, rec.Code)
		var us stats.UserStats
		unmarshall(t, rec, &us)
		assert.Equal(t, 1, us.Late)
		assert.Equal(t, 1, us.Sessions)

		rec = do(server, http.MethodGet, path, tokens[1])
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(server, http.MethodGet, "/v1/attendance/offerings/"+c.Offering.ID+"/summary", instructorToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var summary stats.CourseSummary
		unmarshall(t, rec, &summary)
		require.Len(t, summary.Students, 3)
		assert.Equal(t, "Student A", summary.Students[0].Name)
		assert.Equal(t, 100.0, *summary.Students[0].Percentage)
	})

	t.Run("bulk import", func(t *testing.T) {
		body := []byte(`{"attendance":[` +
			`{"email":"STUDENTA@ucsd.edu","status":"absent"},` +
			`{"institutional_id":"A00000001","status":"Late"},` +
			`{"email":"eve@ucsd.edu","status":"present"},` +
			`{"email":"nobody@ucsd.edu","status":"present"}]}`)
		rec := do(server, http.MethodPost, "/v1/attendance/bulk-import/"+sess.ID, instructorToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var report attendance.ImportReport
		unmarshall(t, rec, &report)
		assert.Equal(t, 2, report.Imported)
		assert.Equal(t, 2, report.Failed)
		assert.Equal(t, "user is not enrolled as a student in this course", report.Results[2].Error)
		assert.Equal(t, "user not found", report.Results[3].Error)

		rec = do(server, http.MethodPost, "/v1/attendance/bulk-import/"+sess.ID, instructorToken, []byte(`{"attendance":[]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update and delete", func(t *testing.T) {
		rec := do(server, http.MethodGet, "/v1/attendance/offerings/"+c.Offering.ID+"/users/"+c.Students[0].ID, tokens[0])
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []attendance.Attendance
		unmarshall(t, rec, &rows)
		require.Len(t, rows, 1)
		assert.Equal(t, attendance.StatusAbsent, rows[0].Status)

		rec = do(server, http.MethodPut, "/v1/attendance/"+rows[0].ID, instructorToken, []byte(`{"status":"excused"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		var att attendance.Attendance
		unmarshall(t, rec, &att)
		assert.Equal(t, attendance.StatusExcused, att.Status)

		rec = do(server, http.MethodDelete, "/v1/attendance/"+rows[0].ID, leaderToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = do(server, http.MethodDelete, "/v1/attendance/"+rows[0].ID, instructorToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = do(server, http.MethodDelete, "/v1/attendance/"+rows[0].ID, instructorToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
