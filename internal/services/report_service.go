package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"

	"github.com/yoockh/formdesk/internal/models"
	pgrepo "github.com/yoockh/formdesk/internal/repositories/postgres"
	"github.com/yoockh/formdesk/internal/utils"
)

type ReportService interface {
	// ExportJobApplicationsCSV renders every job application, newest first,
	// as a semicolon separated sheet prefixed with a UTF-8 BOM.
	ExportJobApplicationsCSV(ctx context.Context) ([]byte, error)
}

type reportService struct {
	jobs pgrepo.JobApplicationRepository
}

func NewReportService(jobs pgrepo.JobApplicationRepository) ReportService {
	return &reportService{jobs: jobs}
}

const utf8BOM = "\ufeff"

const reportTimeLayout = "2006-01-02 15:04:05"

var jobApplicationHeaders = []string{
	"ID", "Nombre", "Email", "Teléfono", "Cargo", "Mensaje", "Hoja de vida", "Fecha (UTC)", "IP", "Navegador",
}

func (s *reportService) ExportJobApplicationsCSV(ctx context.Context) ([]byte, error) {
	const op = "ReportService.ExportJobApplicationsCSV"

	rows, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list job applications", err)
	}
	if len(rows) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no hay postulaciones registradas", utils.ErrNotFound)
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	w.UseCRLF = true

	if err := w.Write(jobApplicationHeaders); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to write csv header", err)
	}
	for _, r := range rows {
		if err := w.Write(jobApplicationRecord(r)); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to flush csv", err)
	}
	return buf.Bytes(), nil
}

func jobApplicationRecord(r models.JobApplication) []string {
	return []string{
		r.ID,
		cell(r.Name),
		cell(r.Email),
		cell(r.Phone),
		cell(r.Position),
		cell(r.Message),
		r.AttachmentURL,
		r.SubmittedAt.UTC().Format(reportTimeLayout),
		r.IP,
		cell(r.UserAgent),
	}
}

// cell neutralises values a spreadsheet would evaluate as a formula.
func cell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
