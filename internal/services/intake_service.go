package services

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/formdesk/internal/models"
	"github.com/yoockh/formdesk/internal/notify"
	pgrepo "github.com/yoockh/formdesk/internal/repositories/postgres"
	"github.com/yoockh/formdesk/internal/storage"
	"github.com/yoockh/formdesk/internal/utils"
)

type AttachmentInput struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

type JobApplicationInput struct {
	Name     string
	Email    string
	Phone    string
	Position string
	Message  string

	Attachment *AttachmentInput
	Origin     models.RequestOrigin
}

type ComplaintInput struct {
	Name    string
	Email   string
	Phone   string
	Branch  string
	Subject string
	Message string

	Attachment *AttachmentInput
	Origin     models.RequestOrigin
}

type Ack struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
}

type IntakeService interface {
	SubmitJobApplication(ctx context.Context, in JobApplicationInput) (*Ack, error)
	SubmitComplaint(ctx context.Context, in ComplaintInput) (*Ack, error)
}

type IntakeConfig struct {
	GeneralFolder    string
	ComplaintsFolder string
	MaxUploadBytes   int64
	AllowedMimeTypes []string
	Recipients       []string
	CC               []string
	// CallTimeout bounds each external stage (upload, persist, notify).
	CallTimeout time.Duration
}

type intakeService struct {
	jobs       pgrepo.JobApplicationRepository
	complaints pgrepo.ComplaintRepository
	store      storage.ObjectStore
	notifier   notify.Notifier
	cfg        IntakeConfig
	log        *logrus.Logger

	now   func() time.Time
	newID func() string
}

func NewIntakeService(
	jobs pgrepo.JobApplicationRepository,
	complaints pgrepo.ComplaintRepository,
	store storage.ObjectStore,
	notifier notify.Notifier,
	cfg IntakeConfig,
	log *logrus.Logger,
) IntakeService {
	if log == nil {
		log = logrus.New()
	}
	return &intakeService{
		jobs:       jobs,
		complaints: complaints,
		store:      store,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// submission is the kind-specific half of the pipeline.
type submission struct {
	op         string
	kind       models.Kind
	name       string
	folder     string
	attachment *AttachmentInput
	required   []field
	persist    func(ctx context.Context, id string, at time.Time, att models.Attachment) error
	compose    func(id string, at time.Time, att models.Attachment) (subject, html string, err error)
}

type field struct {
	key   string
	value string
}

func (s *intakeService) SubmitJobApplication(ctx context.Context, in JobApplicationInput) (*Ack, error) {
	in.Name, in.Email, in.Phone = clean(in.Name), clean(in.Email), clean(in.Phone)
	in.Position, in.Message = clean(in.Position), clean(in.Message)

	return s.run(ctx, submission{
		op:         "IntakeService.SubmitJobApplication",
		kind:       models.KindJobApplication,
		name:       in.Name,
		folder:     s.cfg.GeneralFolder,
		attachment: in.Attachment,
		required: []field{
			{"nombre", in.Name},
			{"email", in.Email},
			{"telefono", in.Phone},
			{"cargo", in.Position},
		},
		persist: func(ctx context.Context, id string, at time.Time, att models.Attachment) error {
			return s.jobs.Insert(ctx, &models.JobApplication{
				ID:            id,
				Name:          in.Name,
				Email:         in.Email,
				Phone:         in.Phone,
				Position:      in.Position,
				Message:       in.Message,
				AttachmentID:  att.StorageID,
				AttachmentURL: att.PublicURL,
				SubmittedAt:   at,
				IP:            in.Origin.IP,
				UserAgent:     in.Origin.UserAgent,
			})
		},
		compose: func(id string, at time.Time, att models.Attachment) (string, string, error) {
			return composeJobApplication(id, at, att, in)
		},
	})
}

func (s *intakeService) SubmitComplaint(ctx context.Context, in ComplaintInput) (*Ack, error) {
	in.Name, in.Email, in.Phone = clean(in.Name), clean(in.Email), clean(in.Phone)
	in.Branch, in.Subject, in.Message = clean(in.Branch), clean(in.Subject), clean(in.Message)

	return s.run(ctx, submission{
		op:         "IntakeService.SubmitComplaint",
		kind:       models.KindComplaint,
		name:       in.Name,
		folder:     s.cfg.ComplaintsFolder,
		attachment: in.Attachment,
		required: []field{
			{"nombre", in.Name},
			{"email", in.Email},
			{"telefono", in.Phone},
			{"sucursal", in.Branch},
			{"asunto", in.Subject},
			{"mensaje", in.Message},
		},
		persist: func(ctx context.Context, id string, at time.Time, att models.Attachment) error {
			return s.complaints.Insert(ctx, &models.Complaint{
				ID:            id,
				Name:          in.Name,
				Email:         in.Email,
				Phone:         in.Phone,
				Branch:        in.Branch,
				Subject:       in.Subject,
				Message:       in.Message,
				AttachmentID:  att.StorageID,
				AttachmentURL: att.PublicURL,
				SubmittedAt:   at,
				IP:            in.Origin.IP,
				UserAgent:     in.Origin.UserAgent,
			})
		},
		compose: func(id string, at time.Time, att models.Attachment) (string, string, error) {
			return composeComplaint(id, at, att, in)
		},
	})
}

// run executes validate, upload, persist and notify in that order. Each
// stage starts only after the previous one returned.
func (s *intakeService) run(ctx context.Context, sub submission) (*Ack, error) {
	if missing := missingFields(sub.required); len(missing) > 0 {
		return nil, utils.E(utils.CodeInvalidArgument, sub.op,
			"missing required fields: "+strings.Join(missing, ", "), utils.ErrMissingFields)
	}
	if err := s.checkAttachment(sub.op, sub.attachment); err != nil {
		return nil, err
	}

	id := s.newID()
	at := s.now().UTC()
	log := s.log.WithFields(logrus.Fields{
		"op":            sub.op,
		"kind":          sub.kind,
		"submission_id": id,
	})

	att, err := s.upload(ctx, sub.kind, sub.name, sub.folder, sub.attachment, at)
	if err != nil {
		log.WithError(err).Error("attachment upload failed")
		return nil, utils.E(utils.CodeInternal, sub.op, "failed to upload attachment",
			fmt.Errorf("%w: %w", utils.ErrUploadFailed, err))
	}

	pctx, cancel := s.stageContext(ctx)
	err = sub.persist(pctx, id, at, att)
	cancel()
	if err != nil {
		log.WithError(err).Error("persist failed")
		s.discard(ctx, log, att)
		return nil, utils.E(utils.CodeInternal, sub.op, "failed to store submission",
			fmt.Errorf("%w: %w", utils.ErrPersistFailed, err))
	}

	// The record exists from here on, so a failed notification is logged and
	// the request still succeeds.
	if err := s.notify(ctx, sub, id, at, att); err != nil {
		log.WithError(fmt.Errorf("%w: %w", utils.ErrNotifyFailed, err)).Warn("notification not delivered")
	}

	log.WithField("has_attachment", att.StorageID != "").Info("submission stored")
	return &Ack{Kind: sub.kind, ID: id}, nil
}

func (s *intakeService) checkAttachment(op string, a *AttachmentInput) error {
	if a == nil {
		return nil
	}
	if s.cfg.MaxUploadBytes > 0 && a.Size > s.cfg.MaxUploadBytes {
		return utils.E(utils.CodePayloadTooLarge, op,
			fmt.Sprintf("attachment exceeds %d bytes", s.cfg.MaxUploadBytes), utils.ErrAttachmentTooLarge)
	}
	if !mimetype.EqualsAny(a.MimeType, s.cfg.AllowedMimeTypes...) {
		return utils.E(utils.CodeUnsupportedMedia, op,
			"attachment type "+a.MimeType+" is not allowed", utils.ErrUnsupportedAttachmentType)
	}
	return nil
}

// upload returns a zero Attachment when there is nothing to upload. A
// partially uploaded object is deleted before the error is returned.
func (s *intakeService) upload(ctx context.Context, kind models.Kind, name, folder string, a *AttachmentInput, at time.Time) (models.Attachment, error) {
	if a == nil {
		return models.Attachment{}, nil
	}

	uctx, cancel := s.stageContext(ctx)
	defer cancel()

	id, err := s.store.CreateObject(uctx, ObjectName(kind, name, at), a.MimeType, a.Body)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("create object: %w", err)
	}

	moved, err := s.store.SetParent(uctx, id, folder)
	if err != nil {
		s.discard(ctx, s.log.WithField("kind", kind), models.Attachment{StorageID: id})
		return models.Attachment{}, fmt.Errorf("set parent: %w", err)
	}

	if err := s.store.GrantPublicRead(uctx, moved); err != nil {
		s.discard(ctx, s.log.WithField("kind", kind), models.Attachment{StorageID: moved})
		return models.Attachment{}, fmt.Errorf("grant public read: %w", err)
	}

	return models.Attachment{StorageID: moved, PublicURL: s.store.PublicURL(moved)}, nil
}

// discard deletes an uploaded object that no record will reference. It runs
// even if the request context is already cancelled.
func (s *intakeService) discard(ctx context.Context, log *logrus.Entry, att models.Attachment) {
	if att.StorageID == "" {
		return
	}
	dctx, cancel := s.stageContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.store.DeleteObject(dctx, att.StorageID); err != nil {
		log.WithError(err).WithField("storage_id", att.StorageID).Error("orphaned attachment could not be deleted")
		return
	}
	log.WithField("storage_id", att.StorageID).Warn("orphaned attachment deleted")
}

func (s *intakeService) notify(ctx context.Context, sub submission, id string, at time.Time, att models.Attachment) error {
	if s.notifier == nil {
		return nil
	}
	subject, html, err := sub.compose(id, at, att)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	nctx, cancel := s.stageContext(ctx)
	defer cancel()
	return s.notifier.Send(nctx, notify.Message{
		To:      s.cfg.Recipients,
		Cc:      s.cfg.CC,
		Subject: subject,
		HTML:    html,
	})
}

func (s *intakeService) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ObjectName builds "<PREFIX>_<name>_<unix millis>" with whitespace runs in
// the submitter name collapsed to a single underscore.
func ObjectName(kind models.Kind, name string, at time.Time) string {
	sanitized := whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	return fmt.Sprintf("%s_%s_%d", kind.StoragePrefix(), sanitized, at.UnixMilli())
}

func missingFields(fields []field) []string {
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	return missing
}

func clean(s string) string { return strings.TrimSpace(s) }
