package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/audit"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

var (
	teacherActor = core.Actor{ID: "t-001", Username: "mrskasongo"}
	studentActor = core.Actor{ID: "s-001", Username: "amani"}

	academicYear = "2026-2027"
)

type recordRequest struct {
	StudentID       string                    `json:"student_id"`
	OccurredAt      time.Time                 `json:"occurred_at"`
	DurationMinutes int                       `json:"duration_minutes,omitempty"`
	Reason          string                    `json:"reason,omitempty"`
	Justification   *attendance.JustifyRecord `json:"justification,omitempty"`
}

func seedClass(t *testing.T, db *inmemdb.DB) (cls struct {
	ID       string
	Students []string
}) {
	t.Helper()
	db.SetActiveYear(academicYear)
	class := testutil.CreateClass(t, db, "Form 1A", academicYear)
	st1 := testutil.CreateEnrolledStudent(t, db, "Amani Kalenga", class)
	st2 := testutil.CreateEnrolledStudent(t, db, "Bahati Mwamba", class)
	cls.ID = class.ID
	cls.Students = []string{st1.ID, st2.ID}
	return cls
}

func Test_attendanceApi_auth(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	studentToken := getToken(t, studentActor, false, false)

	errForbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "absences: no token", method: http.MethodPost, path: "/v1/attendance/absences",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "roll-call: no token", method: http.MethodPost, path: "/v1/attendance/roll-call",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list: no token", method: http.MethodGet, path: "/v1/attendance",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "roster: no token", method: http.MethodGet, path: "/v1/classes/" + cls.ID + "/students",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "absences: student token", method: http.MethodPost, path: "/v1/attendance/absences", token: studentToken,
			wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "list: student token", method: http.MethodGet, path: "/v1/attendance", token: studentToken,
			wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "roster: student token", method: http.MethodGet, path: "/v1/classes/" + cls.ID + "/students", token: studentToken,
			wantCode: http.StatusForbidden, wantData: errForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_create(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	past := time.Now().UTC().Add(-time.Hour)

	t.Run("absence created", func(t *testing.T) {
		body := marchallObj(t, recordRequest{StudentID: cls.Students[0], OccurredAt: past, Reason: "no show"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/absences", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var got attendance.Record
		unmarchallObj(t, rec.Body.Bytes(), &got)
		if got.Kind.Base != attendance.BaseAbsence {
			t.Errorf("kind = %s, want %s", got.Kind.Base, attendance.BaseAbsence)
		}
		if got.ClassID != cls.ID {
			t.Errorf("class_id = %s, want %s", got.ClassID, cls.ID)
		}
	})

	t.Run("delay with immediate justification", func(t *testing.T) {
		body := marchallObj(t, recordRequest{
			StudentID:       cls.Students[1],
			OccurredAt:      past,
			DurationMinutes: 15,
			Justification:   &attendance.JustifyRecord{Text: "flooded road on the way to school"},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/delays", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var got attendance.Record
		unmarchallObj(t, rec.Body.Bytes(), &got)
		if !got.Kind.Justified {
			t.Error("record was not justified on creation")
		}
		if got.Justification == nil || got.Justification.ValidatedBy != teacherActor.ID {
			t.Errorf("justification = %+v, want validated by %s", got.Justification, teacherActor.ID)
		}
	})

	validationTests := []httpTest{
		{name: "unknown student", path: "/v1/attendance/absences",
			body:     marchallObj(t, recordRequest{StudentID: "s-404", OccurredAt: past}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": attendance.CodeUnknownStudent})},
		{name: "future timestamp", path: "/v1/attendance/absences",
			body:     marchallObj(t, recordRequest{StudentID: cls.Students[0], OccurredAt: time.Now().Add(time.Hour)}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"occurred_at": attendance.CodeFutureTimestamp})},
		{name: "delay without duration", path: "/v1/attendance/delays",
			body:     marchallObj(t, recordRequest{StudentID: cls.Students[0], OccurredAt: past.Add(time.Minute)}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"duration_minutes": attendance.CodeInvalidDuration})},
		{name: "short justification rejected upfront", path: "/v1/attendance/delays",
			body: marchallObj(t, recordRequest{
				StudentID: cls.Students[0], OccurredAt: past.Add(2 * time.Minute), DurationMinutes: 5,
				Justification: &attendance.JustifyRecord{Text: "sick"},
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"justification_text": attendance.CodeInvalidJustification})},
	}
	for _, tt := range validationTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		body := marchallObj(t, recordRequest{StudentID: cls.Students[0], OccurredAt: past})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/absences", token, body)
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"occurred_at": attendance.CodeDuplicateRecord}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_attendanceApi_rollCall(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	past := time.Now().UTC().Add(-time.Hour)

	t.Run("processed", func(t *testing.T) {
		body := marchallObj(t, attendance.RollCall{
			ClassID:    cls.ID,
			OccurredAt: past,
			Entries: map[string]attendance.RollCallEntry{
				cls.Students[0]: {Status: attendance.RollAbsence},
				cls.Students[1]: {Status: attendance.RollPresent},
				"s-404":         {Status: attendance.RollDelay, DurationMinutes: 10},
			},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/roll-call", token, body)
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.RollCallResult{
				Created: 1,
				Skipped: []attendance.SkippedEntry{{StudentID: "s-404", Reason: attendance.CodeStudentNotInClass}},
			}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown class aborts", func(t *testing.T) {
		body := marchallObj(t, attendance.RollCall{
			ClassID:    "c-404",
			OccurredAt: past,
			Entries:    map[string]attendance.RollCallEntry{cls.Students[0]: {Status: attendance.RollAbsence}},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/roll-call", token, body)
		app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_id": attendance.CodeUnknownClass}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_attendanceApi_justify(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	rec := createRecord(t, app, token, cls.Students[0], time.Now().UTC().Add(-time.Hour))

	t.Run("justified", func(t *testing.T) {
		body := marchallObj(t, attendance.JustifyRecord{Text: "medical certificate provided by the parents"})
		req, rr := newAuthRequest(http.MethodPost, "/v1/attendance/"+rec.ID+"/justify", token, body)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		var got attendance.Record
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if !got.Kind.Justified {
			t.Error("record was not justified")
		}
	})

	t.Run("already justified", func(t *testing.T) {
		body := marchallObj(t, attendance.JustifyRecord{Text: "a second explanation entirely"})
		req, rr := newAuthRequest(http.MethodPost, "/v1/attendance/"+rec.ID+"/justify", token, body)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"record": attendance.CodeAlreadyJustified}),
		}
		checkCodeAndData(t, tt, rr)
	})

	t.Run("not found", func(t *testing.T) {
		body := marchallObj(t, attendance.JustifyRecord{Text: "long enough justification"})
		req, rr := newAuthRequest(http.MethodPost, "/v1/attendance/r-404/justify", token, body)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, rr)
	})
}

func Test_attendanceApi_update(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	at := time.Now().UTC().Add(-2 * time.Hour)
	rec := createRecord(t, app, token, cls.Students[0], at)

	t.Run("updated", func(t *testing.T) {
		body := marchallObj(t, attendance.EditRecord{
			KindBase: attendance.BaseDelay, OccurredAt: at.Add(time.Minute), DurationMinutes: 20, Reason: "arrived late",
		})
		req, rr := newAuthRequest(http.MethodPut, "/v1/attendance/"+rec.ID, token, body)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		var got attendance.Record
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if got.Kind.Base != attendance.BaseDelay || got.DurationMinutes != 20 {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		body := marchallObj(t, attendance.EditRecord{KindBase: attendance.BaseAbsence, OccurredAt: at})
		req, rr := newAuthRequest(http.MethodPut, "/v1/attendance/r-404", token, body)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, rr)
	})
}

func Test_attendanceApi_queryAndHistory(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	at := time.Now().UTC().Add(-3 * time.Hour)
	rec1 := createRecord(t, app, token, cls.Students[0], at)
	createRecord(t, app, token, cls.Students[1], at.Add(time.Minute))

	t.Run("list all", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/attendance", token)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rr.Code, http.StatusOK)
		}
		var got []attendance.Record
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if len(got) != 2 {
			t.Errorf("listed %d records, want 2", len(got))
		}
	})

	t.Run("filter by student", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/attendance?student_id="+cls.Students[0], token)
		app.ServeHTTP(rr, req)

		var got []attendance.Record
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if len(got) != 1 || got[0].ID != rec1.ID {
			t.Errorf("filtered records = %+v, want [%s]", got, rec1.ID)
		}
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/attendance/"+rec1.ID, token)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rr.Code, http.StatusOK)
		}
		var got attendance.Record
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if got.ID != rec1.ID {
			t.Errorf("retrieved %s, want %s", got.ID, rec1.ID)
		}
	})

	t.Run("retrieve not found", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/attendance/r-404", token)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, rr)
	})

	t.Run("history", func(t *testing.T) {
		body := marchallObj(t, attendance.JustifyRecord{Text: "family emergency, parents called"})
		req, rr := newAuthRequest(http.MethodPost, "/v1/attendance/"+rec1.ID+"/justify", token, body)
		app.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("justify failed: %s", rr.Body.String())
		}

		req, rr = newAuthRequest(http.MethodGet, "/v1/attendance/"+rec1.ID+"/history", token)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v", rr.Code, http.StatusOK)
		}
		var got []audit.Entry
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if len(got) != 2 {
			t.Fatalf("history has %d entries, want 2", len(got))
		}
		if got[0].Action != audit.ActionJustify || got[1].Action != audit.ActionCreate {
			t.Errorf("history order = [%s, %s], want [justify, create]", got[0].Action, got[1].Action)
		}
	})
}

func Test_attendanceApi_classRoster(t *testing.T) {
	app, db := setup(t)
	cls := seedClass(t, db)
	token := getToken(t, teacherActor, true, false)

	at := time.Now().UTC().Add(-time.Hour)
	createRecord(t, app, token, cls.Students[0], at)

	t.Run("plain roster", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/students", token)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		var got []attendance.RosterStudent
		unmarchallObj(t, rr.Body.Bytes(), &got)
		if len(got) != 2 {
			t.Errorf("roster has %d students, want 2", len(got))
		}
		for _, rst := range got {
			if rst.HasRecord != nil {
				t.Errorf("roster without date annotated %s", rst.ID)
			}
		}
	})

	t.Run("annotated roster", func(t *testing.T) {
		date := at.Format("2006-01-02")
		req, rr := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/classes/%s/students?date=%s", cls.ID, date), token)
		app.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		var got []attendance.RosterStudent
		unmarchallObj(t, rr.Body.Bytes(), &got)
		for _, rst := range got {
			want := rst.ID == cls.Students[0]
			if rst.HasRecord == nil || *rst.HasRecord != want {
				t.Errorf("HasRecord for %s = %v, want %v", rst.ID, rst.HasRecord, want)
			}
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/students?date=lol", token)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date": "invalid date, expected 2006-01-02"}),
		}
		checkCodeAndData(t, tt, rr)
	})

	t.Run("unknown class", func(t *testing.T) {
		req, rr := newAuthRequest(http.MethodGet, "/v1/classes/c-404/students", token)
		app.ServeHTTP(rr, req)

		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		checkCodeAndData(t, tt, rr)
	})
}

func createRecord(t *testing.T, app *Server, token, studentID string, at time.Time) attendance.Record {
	t.Helper()
	body := marchallObj(t, recordRequest{StudentID: studentID, OccurredAt: at})
	req, rr := newAuthRequest(http.MethodPost, "/v1/attendance/absences", token, body)
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("createRecord() code = %v; body %s", rr.Code, rr.Body.String())
	}
	var rec attendance.Record
	unmarchallObj(t, rr.Body.Bytes(), &rec)
	return rec
}
