package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/mailer"
	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/queue"
	"github.com/triagify/triagify-backend/internal/repository"
)

// memDB is the shared state behind the fake stores.
type memDB struct {
	mu         sync.Mutex
	users      map[string]model.User
	refresh    map[string]refreshRow
	screenings map[string]model.Screening
	answers    map[string][]model.AnswerInput
	questions  map[string]model.Question
	assoc      map[[2]string]model.Association
}

type refreshRow struct {
	userID  string
	exp     time.Time
	revoked bool
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[string]model.User{},
		refresh:    map[string]refreshRow{},
		screenings: map[string]model.Screening{},
		answers:    map[string][]model.AnswerInput{},
		questions:  map[string]model.Question{},
		assoc:      map[[2]string]model.Association{},
	}
}

func (m *memDB) addUser(name string, role model.Role) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		FullName:  name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u
}

func (m *memDB) addScreening(patientID string, status model.ScreeningStatus, doctorID *string) model.Screening {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	s := model.Screening{ID: uuid.NewString(), Status: status, PatientID: patientID, DoctorID: doctorID, CreatedAt: now, UpdatedAt: now}
	m.screenings[s.ID] = s
	return s
}

func (m *memDB) addQuestion(text string, creatorID *string) model.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := model.Question{ID: uuid.NewString(), Text: text, Category: "General", Type: model.QuestionOpenText, Options: []string{}, CreatorID: creatorID}
	m.questions[q.ID] = q
	return q
}

func (m *memDB) link(doctorID, patientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assoc[[2]string{doctorID, patientID}] = model.Association{DoctorID: doctorID, PatientID: patientID, AssignedAt: time.Now().UTC()}
}

func (m *memDB) screening(id string) model.Screening {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenings[id]
}

func (m *memDB) user(id string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// ----- users -----

type fakeUsers struct{ *memDB }

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, x := range f.users {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	f.users[u.ID] = *u
	return nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f fakeUsers) GetByIDAndRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil || u.Role != role {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f fakeUsers) UpdateProfile(_ context.Context, id string, fullName, specialty *string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if specialty != nil {
		u.Specialty = specialty
	}
	f.users[id] = u
	return u, nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f fakeUsers) SetResetToken(_ context.Context, id, tokenHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.PasswordResetToken, u.PasswordResetExpires = &tokenHash, &exp
	f.users[id] = u
	return nil
}

func (f fakeUsers) ResetPassword(_ context.Context, tokenHash, newHash string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.PasswordResetToken != nil && *u.PasswordResetToken == tokenHash && u.PasswordResetExpires.After(now) {
			u.PasswordHash = newHash
			u.PasswordResetToken, u.PasswordResetExpires = nil, nil
			f.users[id] = u
			return id, nil
		}
	}
	return "", repository.ErrInvalidResetToken
}

func (f fakeUsers) Search(_ context.Context, flt repository.UserFilter) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.UserSummary{}
	for _, u := range f.users {
		if u.Role == model.RoleAdmin || (flt.Role.Valid() && u.Role != flt.Role) {
			continue
		}
		s := strings.ToLower(flt.Search)
		if s != "" && !strings.Contains(strings.ToLower(u.FullName), s) && !strings.Contains(u.Email, s) {
			continue
		}
		out = append(out, u.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.users, id)
	for sid, s := range f.screenings {
		if s.PatientID == id {
			delete(f.screenings, sid)
			delete(f.answers, sid)
		} else if s.DoctorID != nil && *s.DoctorID == id {
			s.DoctorID = nil
			f.screenings[sid] = s
		}
	}
	for k := range f.assoc {
		if k[0] == id || k[1] == id {
			delete(f.assoc, k)
		}
	}
	return nil
}

// ----- refresh tokens -----

type fakeTokens struct{ *memDB }

func (f fakeTokens) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = refreshRow{userID: userID, exp: exp}
	return nil
}

func (f fakeTokens) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.refresh[tokenHash]
	if !ok || r.revoked || time.Now().After(r.exp) {
		return "", repository.ErrInvalidRefreshToken
	}
	return r.userID, nil
}

func (f fakeTokens) RevokeByHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.refresh[tokenHash]; ok {
		r.revoked = true
		f.refresh[tokenHash] = r
	}
	return nil
}

func (f fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, r := range f.refresh {
		if r.userID == userID {
			r.revoked = true
			f.refresh[h] = r
		}
	}
	return nil
}

// ----- screenings -----

type fakeScreenings struct{ *memDB }

func (f fakeScreenings) Create(_ context.Context, patientID string, doctorID *string) (model.Screening, error) {
	return f.addScreening(patientID, model.StatusPending, doctorID), nil
}

func (f fakeScreenings) GetOwned(_ context.Context, id, patientID string) (model.Screening, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok || s.PatientID != patientID {
		return model.Screening{}, repository.ErrScreeningNotFound
	}
	return s, nil
}

func (f fakeScreenings) Detail(_ context.Context, id string) (model.ScreeningDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok {
		return model.ScreeningDetail{}, repository.ErrScreeningNotFound
	}
	p := f.users[s.PatientID]
	d := model.ScreeningDetail{Screening: s, PatientName: p.FullName, PatientEmail: p.Email, Answers: []model.AnswerDetail{}}
	for _, a := range f.answers[id] {
		q := f.questions[a.QuestionID]
		d.Answers = append(d.Answers, model.AnswerDetail{
			Answer:           model.Answer{ScreeningID: id, QuestionID: a.QuestionID, Value: a.Value},
			QuestionText:     q.Text,
			QuestionCategory: q.Category,
			QuestionType:     q.Type,
		})
	}
	return d, nil
}

func (f fakeScreenings) ReplaceAnswers(_ context.Context, id, patientID string, answers []model.AnswerInput) (model.Screening, error) {
	seen := map[string]bool{}
	for _, a := range answers {
		if seen[a.QuestionID] {
			return model.Screening{}, repository.ErrDuplicateAnswer
		}
		seen[a.QuestionID] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok || s.PatientID != patientID {
		return model.Screening{}, repository.ErrScreeningNotFound
	}
	next, err := model.Transition(s.Status, model.EventSubmitAnswers)
	if err != nil {
		return model.Screening{}, err
	}
	for _, a := range answers {
		if _, ok := f.questions[a.QuestionID]; !ok {
			return model.Screening{}, repository.ErrUnknownQuestion
		}
	}
	f.answers[id] = append([]model.AnswerInput(nil), answers...)
	s.Status = next
	f.screenings[id] = s
	return s, nil
}

func (f fakeScreenings) AppendExamSummary(_ context.Context, id, patientID, section string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[id]
	if !ok || s.PatientID != patientID {
		return "", repository.ErrScreeningNotFound
	}
	out := model.AppendExamSummary(s.ExamSummary, section)
	s.ExamSummary = &out
	f.screenings[id] = s
	return out, nil
}

func (f fakeScreenings) Review(_ context.Context, in repository.ReviewInput) (model.ReviewRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.screenings[in.ScreeningID]
	if !ok {
		return model.ReviewRecord{}, repository.ErrScreeningNotFound
	}
	if _, linked := f.assoc[[2]string{in.DoctorID, s.PatientID}]; in.RequireAssociation && !linked {
		return model.ReviewRecord{}, repository.ErrScreeningNotFound
	}
	next, err := model.Transition(s.Status, model.EventReview)
	if err != nil {
		return model.ReviewRecord{}, err
	}
	now := time.Now().UTC()
	rec := model.ReviewRecord{
		ScreeningID:    s.ID,
		PatientID:      s.PatientID,
		DoctorID:       in.DoctorID,
		Notes:          in.Notes,
		PreviousStatus: s.Status,
		PreviousDoctor: s.DoctorID,
		PreviousNotes:  s.DoctorNotes,
		ReviewedAt:     now,
	}
	doctor, notes := in.DoctorID, in.Notes
	s.Status, s.DoctorID, s.DoctorNotes, s.ReviewedAt = next, &doctor, &notes, &now
	f.screenings[s.ID] = s
	return rec, nil
}

func (f fakeScreenings) list(keep func(model.Screening) bool) []model.ScreeningListItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ScreeningListItem{}
	for _, s := range f.screenings {
		if keep(s) {
			out = append(out, model.ScreeningListItem{Screening: s, PatientName: f.users[s.PatientID].FullName})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f fakeScreenings) ListByPatient(_ context.Context, patientID string) ([]model.ScreeningListItem, error) {
	return f.list(func(s model.Screening) bool { return s.PatientID == patientID }), nil
}

func (f fakeScreenings) ListForUser(_ context.Context, userID string) ([]model.ScreeningListItem, error) {
	return f.list(func(s model.Screening) bool {
		return s.PatientID == userID || (s.DoctorID != nil && *s.DoctorID == userID)
	}), nil
}

func (f fakeScreenings) PendingReview(_ context.Context, doctorID string) ([]model.ScreeningListItem, error) {
	f.mu.Lock()
	linked := map[string]bool{}
	for k := range f.assoc {
		if k[0] == doctorID {
			linked[k[1]] = true
		}
	}
	f.mu.Unlock()
	return f.list(func(s model.Screening) bool { return s.Status == model.StatusCompleted && linked[s.PatientID] }), nil
}

func (f fakeScreenings) CountReviewedSince(_ context.Context, doctorID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.screenings {
		if s.Status == model.StatusReviewed && s.DoctorID != nil && *s.DoctorID == doctorID &&
			s.ReviewedAt != nil && !s.ReviewedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f fakeScreenings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.screenings[id]; !ok {
		return repository.ErrScreeningNotFound
	}
	delete(f.screenings, id)
	delete(f.answers, id)
	return nil
}

// ----- questions -----

type fakeQuestions struct{ *memDB }

func (f fakeQuestions) ListVisible(_ context.Context, creatorIDs ...string) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := map[string]bool{}
	for _, id := range creatorIDs {
		if id != "" {
			ids[id] = true
		}
	}
	out := []model.Question{}
	for _, q := range f.questions {
		if q.Global() || ids[*q.CreatorID] {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out, nil
}

func (f fakeQuestions) Create(_ context.Context, creatorID string, in model.QuestionInput) (model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.questions {
		if q.Text == in.Text {
			return model.Question{}, repository.ErrQuestionExists
		}
	}
	q := model.Question{ID: uuid.NewString(), Text: in.Text, Category: in.Category, Type: in.Type, Options: in.Options, CreatorID: &creatorID}
	f.questions[q.ID] = q
	return q, nil
}

func (f fakeQuestions) Update(_ context.Context, id, creatorID string, in model.QuestionInput) (model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok || q.CreatorID == nil || *q.CreatorID != creatorID {
		return model.Question{}, repository.ErrQuestionNotFound
	}
	q.Text, q.Category, q.Type, q.Options = in.Text, in.Category, in.Type, in.Options
	f.questions[id] = q
	return q, nil
}

func (f fakeQuestions) Delete(_ context.Context, id, creatorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.questions[id]
	if !ok || q.CreatorID == nil || *q.CreatorID != creatorID {
		return repository.ErrQuestionNotFound
	}
	delete(f.questions, id)
	for sid, as := range f.answers {
		kept := as[:0]
		for _, a := range as {
			if a.QuestionID != id {
				kept = append(kept, a)
			}
		}
		f.answers[sid] = kept
	}
	return nil
}

// ----- associations -----

type fakeAssocs struct{ *memDB }

func (f fakeAssocs) Associate(_ context.Context, doctorID, patientID, assignedBy string) (model.Association, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users[doctorID].Role != model.RoleDoctor || f.users[patientID].Role != model.RolePatient {
		return model.Association{}, repository.ErrUserNotFound
	}
	key := [2]string{doctorID, patientID}
	if _, ok := f.assoc[key]; ok {
		return model.Association{}, repository.ErrAssociationExists
	}
	a := model.Association{DoctorID: doctorID, PatientID: patientID, AssignedBy: &assignedBy, AssignedAt: time.Now().UTC()}
	f.assoc[key] = a
	return a, nil
}

func (f fakeAssocs) Disassociate(_ context.Context, doctorID, patientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{doctorID, patientID}
	if _, ok := f.assoc[key]; !ok {
		return repository.ErrAssociationNotFound
	}
	delete(f.assoc, key)
	return nil
}

func (f fakeAssocs) IsAssociated(_ context.Context, doctorID, patientID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.assoc[[2]string{doctorID, patientID}]
	return ok, nil
}

func (f fakeAssocs) List(_ context.Context) ([]model.AssociationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AssociationView{}
	for _, a := range f.assoc {
		d, p := f.users[a.DoctorID], f.users[a.PatientID]
		out = append(out, model.AssociationView{Association: a, DoctorName: d.FullName, DoctorEmail: d.Email, PatientName: p.FullName, PatientEmail: p.Email})
	}
	return out, nil
}

func (f fakeAssocs) ListPatients(_ context.Context, q repository.PatientQuery) ([]model.UserSummary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := []model.UserSummary{}
	s := strings.ToLower(q.Search)
	for k := range f.assoc {
		if k[0] != q.DoctorID {
			continue
		}
		u := f.users[k[1]]
		if s != "" && !strings.Contains(strings.ToLower(u.FullName), s) && !strings.Contains(u.Email, s) {
			continue
		}
		all = append(all, u.Summary())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FullName < all[j].FullName })
	start := (q.Page - 1) * q.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f fakeAssocs) DoctorsForPatient(_ context.Context, patientID string) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.UserSummary{}
	for k := range f.assoc {
		if k[1] == patientID {
			out = append(out, f.users[k[0]].Summary())
		}
	}
	return out, nil
}

// ----- collaborators -----

type fakeAnalyzer struct {
	summary string
	err     error
	calls   int
}

func (a *fakeAnalyzer) Summarize(context.Context, []byte, string) (string, error) {
	a.calls++
	return a.summary, a.err
}

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	a.keys = append(a.keys, key)
	return a.err
}

type recPublisher struct {
	assigned []queue.ScreeningAssignedEvent
	reviewed []queue.ScreeningReviewedEvent
}

func (p *recPublisher) ScreeningAssigned(_ context.Context, ev queue.ScreeningAssignedEvent) error {
	p.assigned = append(p.assigned, ev)
	return nil
}

func (p *recPublisher) ScreeningReviewed(_ context.Context, ev queue.ScreeningReviewedEvent) error {
	p.reviewed = append(p.reviewed, ev)
	return nil
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *fakeMailer) Close() error { return nil }

// ----- request helpers -----

// newCtx builds an echo context for the given caller. An empty uid leaves
// the request unauthenticated.
func newCtx(method, target, body, uid string, role model.Role) (echo.Context, *httptest.ResponseRecorder) {
	var req = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if uid != "" {
		c.Set(middleware.CtxUserID, uid)
		c.Set(middleware.CtxRole, string(role))
	}
	return c, rec
}

func withParam(c echo.Context, name, value string) echo.Context {
	c.SetParamNames(name)
	c.SetParamValues(value)
	return c
}

var errBoom = errors.New("boom")
