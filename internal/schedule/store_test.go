package schedule

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresStoreProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	pro := uuid.New()
	stID := uuid.New()
	mock.ExpectQuery("SELECT id, professional_id, name, duration_minutes, price, is_pro_bono").
		WithArgs(pro).
		WillReturnRows(pgxmock.NewRows([]string{"id", "professional_id", "name", "duration_minutes", "price", "is_pro_bono"}).
			AddRow(stID, pro, "Intro call", 30, int64(0), true))
	mock.ExpectQuery("SELECT weekday, start_minute, end_minute, session_type_id").
		WithArgs(pro).
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute", "session_type_id"}).
			AddRow(1, 540, 600, stID))

	profile, err := NewPostgresStore(mock).Profile(context.Background(), pro)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(profile.SessionTypes) != 1 || profile.SessionTypes[0].Name != "Intro call" || !profile.SessionTypes[0].IsProBono {
		t.Fatalf("unexpected session types: %+v", profile.SessionTypes)
	}
	if len(profile.Availability) != 1 || profile.Availability[0].Weekday != Weekday(time.Monday) || profile.Availability[0].End != 600 {
		t.Fatalf("unexpected availability: %+v", profile.Availability)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreSaveProfileReplacesAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	p := validProfile()
	talk, therapy := p.SessionTypes[0], p.SessionTypes[1]

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_blocks").WithArgs(p.ProfessionalID).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(regexp.QuoteMeta(upsertSessionType)).
		WithArgs(talk.ID, p.ProfessionalID, talk.Name, talk.DurationMinutes, talk.Price, talk.IsProBono).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertSessionType)).
		WithArgs(therapy.ID, p.ProfessionalID, therapy.Name, therapy.DurationMinutes, therapy.Price, therapy.IsProBono).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM session_types").
		WithArgs(p.ProfessionalID, []string{talk.ID.String(), therapy.ID.String()}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(insertAvailabilityBlock)).
		WithArgs(p.ProfessionalID, 0, 1, 540, 600, talk.ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO availability_blocks").
		WithArgs(p.ProfessionalID, 1, 1, 540, 720, therapy.ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := NewPostgresStore(mock).SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreSaveProfileRejectsForeignSessionType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	p := validProfile()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_blocks").WithArgs(p.ProfessionalID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO session_types").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err = NewPostgresStore(mock).SaveProfile(context.Background(), p)
	if !errors.Is(err, ErrForeignSessionType) {
		t.Fatalf("expected ErrForeignSessionType, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreSaveProfileValidatesFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	p := validProfile()
	p.SessionTypes[0].DurationMinutes = 0

	err = NewPostgresStore(mock).SaveProfile(context.Background(), p)
	if !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements expected: %v", err)
	}
}
