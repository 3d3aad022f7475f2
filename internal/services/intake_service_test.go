package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/formdesk/internal/models"
	"github.com/yoockh/formdesk/internal/notify"
	pgrepo "github.com/yoockh/formdesk/internal/repositories/postgres"
	"github.com/yoockh/formdesk/internal/repositories/postgres/testhelper"
	"github.com/yoockh/formdesk/internal/utils"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 4, 15, 4, 5, 0, time.UTC)

type intakeFixture struct {
	svc        *intakeService
	db         *gorm.DB
	log        *callLog
	store      *objectStoreMock
	notifier   *notifierMock
	jobs       *recordingJobRepo
	complaints *recordingComplaintRepo
	logs       *test.Hook
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	db := testhelper.SetupTestDB(t)
	calls := &callLog{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &intakeFixture{
		db:         db,
		log:        calls,
		store:      newObjectStoreMock(calls),
		notifier:   &notifierMock{log: calls},
		jobs:       &recordingJobRepo{JobApplicationRepository: pgrepo.NewJobApplicationRepo(db), log: calls},
		complaints: &recordingComplaintRepo{ComplaintRepository: pgrepo.NewComplaintRepo(db), log: calls},
		logs:       hook,
	}
	f.svc = NewIntakeService(f.jobs, f.complaints, f.store, f.notifier, IntakeConfig{
		GeneralFolder:    "folder-general",
		ComplaintsFolder: "folder-quejas",
		MaxUploadBytes:   1 << 20,
		AllowedMimeTypes: []string{"application/pdf", "image/png"},
		Recipients:       []string{"rrhh@example.com"},
		CC:               []string{"gerencia@example.com"},
		CallTimeout:      5 * time.Second,
	}, logger).(*intakeService)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func validJobApplication() JobApplicationInput {
	return JobApplicationInput{
		Name:     "Ana María  Pérez",
		Email:    "ana@x.com",
		Phone:    "3000000000",
		Position: "Cajera",
		Origin:   models.RequestOrigin{IP: "10.0.0.1", UserAgent: "Mozilla/5.0"},
	}
}

func validComplaint() ComplaintInput {
	return ComplaintInput{
		Name:    "Ana",
		Email:   "ana@x.com",
		Phone:   "3000000000",
		Branch:  "Centro",
		Subject: "Demora",
		Message: "Muy lento",
	}
}

func pdfAttachment() *AttachmentInput {
	body := "%PDF-1.4 hoja de vida"
	return &AttachmentInput{FileName: "cv.pdf", MimeType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestSubmitJobApplication_WithoutAttachment(t *testing.T) {
	f := newIntakeFixture(t)

	ack, err := f.svc.SubmitJobApplication(context.Background(), validJobApplication())
	require.NoError(t, err)
	assert.Equal(t, models.KindJobApplication, ack.Kind)
	assert.NotEmpty(t, ack.ID)

	assert.Equal(t, []string{"jobs.Insert", "notifier.Send"}, f.log.All(), "no storage call without attachment")

	var row models.JobApplication
	require.NoError(t, f.db.First(&row, "id = ?", ack.ID).Error)
	assert.Equal(t, "", row.AttachmentURL)
	assert.Equal(t, "", row.AttachmentID)
	assert.Equal(t, "Ana María  Pérez", row.Name)
	assert.Equal(t, "10.0.0.1", row.IP)
	assert.Equal(t, "Mozilla/5.0", row.UserAgent)
	assert.True(t, fixedNow.Equal(row.SubmittedAt))

	sent := f.notifier.SendCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"rrhh@example.com"}, sent[0].To)
	assert.Equal(t, []string{"gerencia@example.com"}, sent[0].Cc)
	assert.Equal(t, "Nueva postulación: Cajera - Ana María  Pérez", sent[0].Subject)
	assert.NotContains(t, sent[0].HTML, "Hoja de vida")
}

func TestSubmitJobApplication_WithAttachmentUploadsBeforePersist(t *testing.T) {
	f := newIntakeFixture(t)
	in := validJobApplication()
	in.Attachment = pdfAttachment()

	ack, err := f.svc.SubmitJobApplication(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"store.CreateObject",
		"store.SetParent",
		"store.GrantPublicRead",
		"jobs.Insert",
		"notifier.Send",
	}, f.log.All())

	creates := f.store.CreateCalls()
	require.Len(t, creates, 1)
	assert.Equal(t, "HV_Ana_María_Pérez_1777907045000", creates[0].Name)
	assert.Equal(t, "application/pdf", creates[0].MimeType)
	assert.Equal(t, "%PDF-1.4 hoja de vida", string(creates[0].Body))
	assert.Equal(t, [][2]string{{"obj-1", "folder-general"}}, f.store.SetParentCalls())

	var row models.JobApplication
	require.NoError(t, f.db.First(&row, "id = ?", ack.ID).Error)
	assert.Equal(t, "obj-1", row.AttachmentID)
	assert.Equal(t, "https://files.example.com/obj-1", row.AttachmentURL)

	sent := f.notifier.SendCalls()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, `href="https://files.example.com/obj-1"`)
}

func TestSubmitJobApplication_UsesIDReturnedBySetParent(t *testing.T) {
	f := newIntakeFixture(t)
	f.store.SetParentFunc = func(_ context.Context, id, folder string) (string, error) {
		return folder + "/" + id, nil
	}
	in := validJobApplication()
	in.Attachment = pdfAttachment()

	ack, err := f.svc.SubmitJobApplication(context.Background(), in)
	require.NoError(t, err)

	var row models.JobApplication
	require.NoError(t, f.db.First(&row, "id = ?", ack.ID).Error)
	assert.Equal(t, "folder-general/obj-1", row.AttachmentID)
	assert.Equal(t, "https://files.example.com/folder-general/obj-1", row.AttachmentURL)
}

func TestSubmit_MissingFieldsHasNoSideEffects(t *testing.T) {
	jobCases := map[string]func(*JobApplicationInput){
		"nombre":   func(in *JobApplicationInput) { in.Name = "" },
		"email":    func(in *JobApplicationInput) { in.Email = "   " },
		"telefono": func(in *JobApplicationInput) { in.Phone = "" },
		"cargo":    func(in *JobApplicationInput) { in.Position = "\t" },
	}
	for field, mutate := range jobCases {
		t.Run("job_application/"+field, func(t *testing.T) {
			f := newIntakeFixture(t)
			in := validJobApplication()
			in.Attachment = pdfAttachment()
			mutate(&in)

			ack, err := f.svc.SubmitJobApplication(context.Background(), in)
			require.Error(t, err)
			assert.Nil(t, ack)
			assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
			assert.ErrorIs(t, err, utils.ErrMissingFields)
			assert.Contains(t, err.Error(), field)
			assert.Empty(t, f.log.All())
			assert.Zero(t, testhelper.Count(t, f.db, &models.JobApplication{}))
		})
	}

	complaintCases := map[string]func(*ComplaintInput){
		"nombre":   func(in *ComplaintInput) { in.Name = "" },
		"email":    func(in *ComplaintInput) { in.Email = "" },
		"telefono": func(in *ComplaintInput) { in.Phone = "" },
		"sucursal": func(in *ComplaintInput) { in.Branch = "" },
		"asunto":   func(in *ComplaintInput) { in.Subject = "" },
		"mensaje":  func(in *ComplaintInput) { in.Message = "  " },
	}
	for field, mutate := range complaintCases {
		t.Run("complaint/"+field, func(t *testing.T) {
			f := newIntakeFixture(t)
			in := validComplaint()
			mutate(&in)

			_, err := f.svc.SubmitComplaint(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrMissingFields)
			assert.Contains(t, err.Error(), field)
			assert.Empty(t, f.log.All())
			assert.Zero(t, testhelper.Count(t, f.db, &models.Complaint{}))
		})
	}
}

func TestSubmitJobApplication_MessageIsOptional(t *testing.T) {
	f := newIntakeFixture(t)
	in := validJobApplication()
	in.Message = ""

	_, err := f.svc.SubmitJobApplication(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmitJobApplication_IdenticalSubmissionsCreateTwoRecords(t *testing.T) {
	f := newIntakeFixture(t)

	first, err := f.svc.SubmitJobApplication(context.Background(), validJobApplication())
	require.NoError(t, err)
	second, err := f.svc.SubmitJobApplication(context.Background(), validJobApplication())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(2), testhelper.Count(t, f.db, &models.JobApplication{}))
}

func TestSubmitJobApplication_UploadFailureStoresNothing(t *testing.T) {
	f := newIntakeFixture(t)
	f.store.CreateObjectFunc = func(context.Context, string, string, io.Reader) (string, error) {
		return "", errors.New("drive quota exceeded")
	}
	in := validJobApplication()
	in.Attachment = pdfAttachment()

	ack, err := f.svc.SubmitJobApplication(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.ErrorIs(t, err, utils.ErrUploadFailed)

	assert.Equal(t, []string{"store.CreateObject"}, f.log.All())
	assert.Zero(t, testhelper.Count(t, f.db, &models.JobApplication{}))
	assert.Empty(t, f.notifier.SendCalls())
}

func TestSubmitJobApplication_PartialUploadIsDeleted(t *testing.T) {
	f := newIntakeFixture(t)
	f.store.GrantPublicReadFunc = func(context.Context, string) error {
		return errors.New("permission denied")
	}
	in := validJobApplication()
	in.Attachment = pdfAttachment()

	_, err := f.svc.SubmitJobApplication(context.Background(), in)
	require.ErrorIs(t, err, utils.ErrUploadFailed)

	assert.Equal(t, []string{
		"store.CreateObject",
		"store.SetParent",
		"store.GrantPublicRead",
		"store.DeleteObject",
	}, f.log.All())
	assert.Equal(t, []string{"obj-1"}, f.store.DeleteCalls())
	assert.Zero(t, testhelper.Count(t, f.db, &models.JobApplication{}))
}

func TestSubmitComplaint_PersistFailureDeletesUpload(t *testing.T) {
	f := newIntakeFixture(t)
	f.complaints.InsertErr = errors.New("connection refused")
	in := validComplaint()
	in.Attachment = pdfAttachment()

	ack, err := f.svc.SubmitComplaint(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.ErrorIs(t, err, utils.ErrPersistFailed)

	assert.Equal(t, []string{
		"store.CreateObject",
		"store.SetParent",
		"store.GrantPublicRead",
		"complaints.Insert",
		"store.DeleteObject",
	}, f.log.All())
	assert.Empty(t, f.notifier.SendCalls())
}

func TestSubmitComplaint_FailedCompensationIsLogged(t *testing.T) {
	f := newIntakeFixture(t)
	f.complaints.InsertErr = errors.New("connection refused")
	f.store.DeleteObjectFunc = func(context.Context, string) error { return errors.New("gone") }
	in := validComplaint()
	in.Attachment = pdfAttachment()

	_, err := f.svc.SubmitComplaint(context.Background(), in)
	require.ErrorIs(t, err, utils.ErrPersistFailed)

	var found bool
	for _, e := range f.logs.AllEntries() {
		if e.Message == "orphaned attachment could not be deleted" {
			found = true
			assert.Equal(t, "obj-1", e.Data["storage_id"])
		}
	}
	assert.True(t, found)
}

func TestSubmitComplaint_NotifyFailureStillSucceeds(t *testing.T) {
	f := newIntakeFixture(t)
	f.notifier.SendFunc = func(context.Context, notify.Message) error {
		return errors.New("smtp: 535 authentication failed")
	}

	ack, err := f.svc.SubmitComplaint(context.Background(), validComplaint())
	require.NoError(t, err)
	assert.Equal(t, models.KindComplaint, ack.Kind)
	assert.Equal(t, int64(1), testhelper.Count(t, f.db, &models.Complaint{}))

	last := f.logs.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "submission stored", last.Message)
	var warned bool
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "notification not delivered" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSubmitComplaint_Scenario(t *testing.T) {
	f := newIntakeFixture(t)

	ack, err := f.svc.SubmitComplaint(context.Background(), validComplaint())
	require.NoError(t, err)

	var rows []models.Complaint
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, ack.ID, rows[0].ID)
	assert.Equal(t, "", rows[0].AttachmentURL)
	assert.Equal(t, "Centro", rows[0].Branch)

	sent := f.notifier.SendCalls()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "Demora")
	assert.Contains(t, sent[0].Subject, "Ana")
	assert.Contains(t, sent[0].HTML, "Muy lento")
}

func TestSubmitComplaint_UploadsIntoComplaintsFolder(t *testing.T) {
	f := newIntakeFixture(t)
	in := validComplaint()
	in.Attachment = pdfAttachment()

	_, err := f.svc.SubmitComplaint(context.Background(), in)
	require.NoError(t, err)

	creates := f.store.CreateCalls()
	require.Len(t, creates, 1)
	assert.True(t, strings.HasPrefix(creates[0].Name, "QUEJA_Ana_"))
	assert.Equal(t, [][2]string{{"obj-1", "folder-quejas"}}, f.store.SetParentCalls())
}

func TestSubmit_AttachmentRejectedBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		att  *AttachmentInput
		code utils.Code
		want error
	}{
		{
			name: "unsupported type",
			att:  &AttachmentInput{FileName: "x.exe", MimeType: "application/x-msdownload", Size: 10, Body: strings.NewReader("MZ")},
			code: utils.CodeUnsupportedMedia,
			want: utils.ErrUnsupportedAttachmentType,
		},
		{
			name: "too large",
			att:  &AttachmentInput{FileName: "big.pdf", MimeType: "application/pdf", Size: 2 << 20, Body: strings.NewReader("%PDF")},
			code: utils.CodePayloadTooLarge,
			want: utils.ErrAttachmentTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIntakeFixture(t)
			in := validComplaint()
			in.Attachment = tt.att

			_, err := f.svc.SubmitComplaint(context.Background(), in)
			require.Error(t, err)
			assert.True(t, utils.IsCode(err, tt.code))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.log.All())
		})
	}
}

func TestSubmit_MimeTypeParametersIgnored(t *testing.T) {
	f := newIntakeFixture(t)
	in := validJobApplication()
	in.Attachment = &AttachmentInput{FileName: "foto.png", MimeType: "IMAGE/PNG; charset=binary", Size: 4, Body: strings.NewReader("\x89PNG")}

	_, err := f.svc.SubmitJobApplication(context.Background(), in)
	assert.NoError(t, err)
}

func TestObjectName(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "HV_Ana_Perez_1700000000123", ObjectName(models.KindJobApplication, "Ana Perez", at))
	assert.Equal(t, "QUEJA_Ana_Maria_Perez_1700000000123", ObjectName(models.KindComplaint, "  Ana \t Maria\nPerez ", at))
}

func TestComposeComplaint_EscapesHTML(t *testing.T) {
	in := validComplaint()
	in.Message = `<script>alert("x")</script>`

	subject, html, err := composeComplaint("id-1", fixedNow, models.Attachment{}, in)
	require.NoError(t, err)
	assert.Equal(t, "Nueva queja: Demora - Ana", subject)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "id-1")
	assert.Contains(t, html, "2026-05-04T15:04:05Z")
}
