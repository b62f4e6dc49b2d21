package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/analysis"
	"github.com/triagify/triagify-backend/internal/archive"
	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/queue"
)

// ScreeningHandler serves the screening lifecycle for patients and doctors.
type ScreeningHandler struct {
	Cfg          config.Config
	Screenings   ScreeningStore
	Associations AssociationStore
	Analyzer     analysis.Analyzer
	Archive      archive.Archive
	Notifier     queue.Publisher

	// Now is the clock used for "today" boundaries; nil means time.Now.
	Now func() time.Time
}

type answersReq struct {
	Answers []model.AnswerInput `json:"answers"`
}

type reviewReq struct {
	DoctorNotes string `json:"doctorNotes"`
}

// Start opens a PENDING screening owned by the calling patient.
func (h *ScreeningHandler) Start(c echo.Context) error {
	if !requireRole(c, model.RolePatient) {
		return nil
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	s, err := h.Screenings.Create(ctx, middleware.UserID(c), nil)
	if err != nil {
		return storeError(c, err, "create screening failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"screeningId": s.ID})
}

// Details returns one of the caller's own screenings with its answers.
func (h *ScreeningHandler) Details(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	d, err := h.Screenings.Detail(ctx, c.Param("id"))
	if err != nil {
		return storeError(c, err, "load screening failed")
	}
	if d.PatientID != middleware.UserID(c) {
		return jsonError(c, http.StatusNotFound, "screening not found")
	}
	return c.JSON(http.StatusOK, d)
}

// SubmitAnswers replaces the answer set of the caller's screening and marks
// it COMPLETED.
func (h *ScreeningHandler) SubmitAnswers(c echo.Context) error {
	var req answersReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if req.Answers == nil {
		return jsonError(c, http.StatusBadRequest, "answers array is required")
	}
	for i := range req.Answers {
		req.Answers[i].QuestionID = strings.TrimSpace(req.Answers[i].QuestionID)
		if req.Answers[i].QuestionID == "" {
			return jsonError(c, http.StatusBadRequest, "every answer needs a questionId")
		}
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	s, err := h.Screenings.ReplaceAnswers(ctx, c.Param("id"), middleware.UserID(c), req.Answers)
	if err != nil {
		return storeError(c, err, "save answers failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "answers saved", "status": s.Status})
}

// UploadExam analyses an exam document attached to the caller's screening
// and appends the returned summary to the screening. Analysis failures are
// client errors and leave the screening untouched.
func (h *ScreeningHandler) UploadExam(c echo.Context) error {
	id := c.Param("id")
	uid := middleware.UserID(c)
	log := zerolog.Ctx(c.Request().Context())

	fh, err := c.FormFile("examFile")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "examFile is required")
	}
	if fh.Size > h.Cfg.UploadMaxBytes {
		return jsonError(c, http.StatusBadRequest, "file too large")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if _, err := h.Screenings.GetOwned(ctx, id, uid); err != nil {
		return storeError(c, err, "load screening failed")
	}

	f, err := fh.Open()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.Cfg.UploadMaxBytes+1))
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "unreadable file")
	}
	if int64(len(data)) > h.Cfg.UploadMaxBytes {
		return jsonError(c, http.StatusBadRequest, "file too large")
	}
	if len(data) == 0 {
		return jsonError(c, http.StatusBadRequest, "file is empty")
	}
	mimeType := documentType(fh.Header.Get(echo.HeaderContentType), data)
	if mimeType == "" {
		return jsonError(c, http.StatusBadRequest, "only images and PDF documents are accepted")
	}

	actx, acancel := context.WithTimeout(c.Request().Context(), h.Cfg.AnalysisTimeout)
	defer acancel()
	summary, err := h.Analyzer.Summarize(actx, data, mimeType)
	if err != nil {
		log.Warn().Err(err).Str("screening_id", id).Msg("exam analysis failed")
		return jsonError(c, http.StatusBadRequest, "could not extract a summary from the exam")
	}

	key := archive.ExamKey(h.Cfg.Archive.Prefix, id, fh.Filename, h.now())
	if err := h.Archive.Put(c.Request().Context(), key, data, mimeType); err != nil {
		log.Error().Err(err).Str("key", key).Msg("archive exam failed")
	}

	section := model.ExamSection(fh.Filename, summary)
	ctx2, cancel2 := dbCtx(c)
	defer cancel2()
	if _, err := h.Screenings.AppendExamSummary(ctx2, id, uid, section); err != nil {
		return storeError(c, err, "save exam summary failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "exam analyzed", "summary": section})
}

// PatientHistory lists the caller's screenings, newest first.
func (h *ScreeningHandler) PatientHistory(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Screenings.ListByPatient(ctx, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "list screenings failed")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ScreeningHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// documentType returns the media type of an uploaded exam, preferring the
// declared Content-Type and sniffing the content otherwise. Only images
// and PDF are accepted; anything else yields "".
func documentType(declared string, data []byte) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || mt == "application/octet-stream" {
		mt, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if strings.HasPrefix(mt, "image/") || mt == "application/pdf" {
		return mt
	}
	return ""
}
