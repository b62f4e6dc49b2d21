package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestAssociate_Conflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewAssociationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs("d1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO doctor_patients")).
		WithArgs("d1", "p1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err = repo.Associate(context.Background(), "d1", "p1", "admin")
	if !errors.Is(err, ErrAssociationExists) {
		t.Fatalf("expected ErrAssociationExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssociate_WrongRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewAssociationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs("p2", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	if _, err := repo.Associate(context.Background(), "p2", "p1", "admin"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDisassociate_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewAssociationRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM doctor_patients WHERE doctor_id = ? AND patient_id = ?")).
		WithArgs("d1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Disassociate(context.Background(), "d1", "p1"); !errors.Is(err, ErrAssociationNotFound) {
		t.Fatalf("expected ErrAssociationNotFound, got %v", err)
	}
}

func TestListPatients_ScopedToDoctor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewAssociationRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("d1", "%silva%", "%silva%").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.full_name ASC")).
		WithArgs("d1", "%silva%", "%silva%", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "role", "specialty", "created_at"}).
			AddRow("p11", "zoe@example.com", "Zoe Silva", "PATIENT", nil, time.Now()))

	got, total, err := repo.ListPatients(context.Background(), PatientQuery{DoctorID: "d1", Search: "SILVA", Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 11 || len(got) != 1 || got[0].ID != "p11" {
		t.Errorf("unexpected page: total=%d rows=%+v", total, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListPatients_SearchIsLiteral(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewAssociationRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE dp.doctor_id = ? AND (LOWER(u.full_name) LIKE ? ESCAPE '!' OR LOWER(u.email) LIKE ? ESCAPE '!')")).
		WithArgs("d1", "%!_%", "%!_%").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.full_name ASC")).
		WithArgs("d1", "%!_%", "%!_%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "role", "specialty", "created_at"}))

	got, total, err := repo.ListPatients(context.Background(), PatientQuery{DoctorID: "d1", Search: "_", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(got) != 0 {
		t.Errorf("wildcard search matched rows: total=%d rows=%+v", total, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
