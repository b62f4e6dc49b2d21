package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/triagify/triagify-backend/internal/model"
)

func TestPatientList_Pagination(t *testing.T) {
	db := newMemDB()
	doctor := db.addUser("Gregory House", model.RoleDoctor)
	for i := 0; i < 12; i++ {
		p := db.addUser(fmt.Sprintf("Patient %02d", i), model.RolePatient)
		db.link(doctor.ID, p.ID)
	}
	db.addUser("Unlinked", model.RolePatient)
	h := &PatientHandler{Users: fakeUsers{db}, Associations: fakeAssocs{db}}

	c, rec := newCtx(http.MethodGet, "/api/patients?page=2&pageSize=5", "", doctor.ID, model.RoleDoctor)
	if err := h.List(c); err != nil {
		t.Fatal(err)
	}
	var page patientPage
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	want := pagination{Total: 12, Page: 2, PageSize: 5, TotalPages: 3}
	if page.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", page.Pagination, want)
	}
	if len(page.Data) != 5 || page.Data[0].FullName != "Patient 05" {
		t.Errorf("unexpected page data %+v", page.Data)
	}

	c, rec = newCtx(http.MethodGet, "/api/patients?page=zero&pageSize=1000&search=patient%2011", "", doctor.ID, model.RoleDoctor)
	_ = h.List(c)
	page = patientPage{}
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Pagination.Page != 1 || page.Pagination.PageSize != maxPageSize || page.Pagination.Total != 1 {
		t.Errorf("unexpected pagination %+v", page.Pagination)
	}
}

func TestPatientGet_RequiresAssociation(t *testing.T) {
	db := newMemDB()
	doctor := db.addUser("Gregory House", model.RoleDoctor)
	mine := db.addUser("Ana", model.RolePatient)
	theirs := db.addUser("Bruno", model.RolePatient)
	db.link(doctor.ID, mine.ID)
	h := &PatientHandler{Users: fakeUsers{db}, Associations: fakeAssocs{db}}

	c, rec := newCtx(http.MethodGet, "/", "", doctor.ID, model.RoleDoctor)
	_ = h.Get(withParam(c, "id", mine.ID))
	if rec.Code != http.StatusOK {
		t.Errorf("associated: expected 200, got %d", rec.Code)
	}

	c, rec = newCtx(http.MethodGet, "/", "", doctor.ID, model.RoleDoctor)
	_ = h.Get(withParam(c, "id", theirs.ID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("not associated: expected 404, got %d", rec.Code)
	}

	c, rec = newCtx(http.MethodGet, "/", "", mine.ID, model.RolePatient)
	_ = h.Get(withParam(c, "id", mine.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient caller: expected 403, got %d", rec.Code)
	}
}
