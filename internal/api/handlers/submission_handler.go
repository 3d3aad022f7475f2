package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/yoockh/formdesk/internal/models"
	"github.com/yoockh/formdesk/internal/services"
	"github.com/yoockh/formdesk/internal/utils"
)

const (
	attachmentField = "archivo"
	sniffLen        = 3072
	// multipartMemory is the part of a form kept in memory before spilling to disk.
	multipartMemory = 8 << 20
	// formOverhead covers the text fields and multipart framing around the file.
	formOverhead = 1 << 20
)

type SubmissionHandler struct {
	svc            services.IntakeService
	maxUploadBytes int64
}

func NewSubmissionHandler(svc services.IntakeService, maxUploadBytes int64) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Form and JSON bodies share field names.
type jobApplicationRequest struct {
	Name     string `json:"nombre"   form:"nombre"`
	Email    string `json:"email"    form:"email"`
	Phone    string `json:"telefono" form:"telefono"`
	Position string `json:"cargo"    form:"cargo"`
	Message  string `json:"mensaje"  form:"mensaje"`
}

type complaintRequest struct {
	Name    string `json:"nombre"   form:"nombre"`
	Email   string `json:"email"    form:"email"`
	Phone   string `json:"telefono" form:"telefono"`
	Branch  string `json:"sucursal" form:"sucursal"`
	Subject string `json:"asunto"   form:"asunto"`
	Message string `json:"mensaje"  form:"mensaje"`
}

type submissionResponse struct {
	OK      bool        `json:"ok"`
	Kind    models.Kind `json:"kind"`
	ID      string      `json:"id"`
	Message string      `json:"message"`
}

// JobApplication handles POST /api/formulario.
func (h *SubmissionHandler) JobApplication(c *gin.Context) {
	const op = "SubmissionHandler.JobApplication"

	var req jobApplicationRequest
	att, closeFn, err := h.bind(c, op, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	defer closeFn()

	ack, err := h.svc.SubmitJobApplication(c.Request.Context(), services.JobApplicationInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Position:   req.Position,
		Message:    req.Message,
		Attachment: att,
		Origin:     origin(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissionResponse{OK: true, Kind: ack.Kind, ID: ack.ID, Message: "Postulación recibida"})
}

// Complaint handles POST /api/quejas.
func (h *SubmissionHandler) Complaint(c *gin.Context) {
	const op = "SubmissionHandler.Complaint"

	var req complaintRequest
	att, closeFn, err := h.bind(c, op, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	defer closeFn()

	ack, err := h.svc.SubmitComplaint(c.Request.Context(), services.ComplaintInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Branch:     req.Branch,
		Subject:    req.Subject,
		Message:    req.Message,
		Attachment: att,
		Origin:     origin(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, submissionResponse{OK: true, Kind: ack.Kind, ID: ack.ID, Message: "Queja recibida"})
}

// bind fills dst from a JSON, multipart or urlencoded body. JSON bodies carry
// no attachment. The body is capped so an oversized upload fails while
// reading instead of filling the disk.
func (h *SubmissionHandler) bind(c *gin.Context, op string, dst any) (*services.AttachmentInput, func(), error) {
	noop := func() {}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverhead)
	}

	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(dst); err != nil {
			return nil, noop, bodyError(op, "malformed JSON body", err)
		}
		return nil, noop, nil
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, bodyError(op, "malformed form body", err)
	}
	if err := c.ShouldBindWith(dst, binding.FormPost); err != nil {
		return nil, noop, bodyError(op, "malformed form body", err)
	}
	return h.attachment(c, op)
}

func bodyError(op, msg string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return utils.E(utils.CodePayloadTooLarge, op, "request body too large", utils.ErrAttachmentTooLarge)
	}
	return utils.E(utils.CodeInvalidArgument, op, msg, err)
}

// attachment returns nil when no file was sent. The declared content type is
// ignored; the type is sniffed from the first bytes of the file.
func (h *SubmissionHandler) attachment(c *gin.Context, op string) (*services.AttachmentInput, func(), error) {
	noop := func() {}

	fh, err := c.FormFile(attachmentField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, utils.E(utils.CodeInvalidArgument, op, "invalid attachment", err)
	}
	if fh.Size == 0 {
		return nil, noop, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, utils.E(utils.CodeInternal, op, "failed to open upload", err)
	}

	head, err := readHead(f)
	if err != nil {
		f.Close()
		return nil, noop, utils.E(utils.CodeInternal, op, "failed to read upload", err)
	}

	return &services.AttachmentInput{
		FileName: fh.Filename,
		MimeType: mimetype.Detect(head).String(),
		Size:     fh.Size,
		Body:     io.MultiReader(bytes.NewReader(head), f),
	}, func() { f.Close() }, nil
}

func readHead(f multipart.File) ([]byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func origin(c *gin.Context) models.RequestOrigin {
	return models.RequestOrigin{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
