package services

import (
	"bytes"
	"html/template"
	"time"

	"github.com/yoockh/formdesk/internal/models"
)

var jobApplicationTmpl = template.Must(template.New("postulacion").Parse(`<h2>Nueva postulación recibida</h2>
<table cellpadding="6" style="border-collapse:collapse;font-family:Arial,sans-serif">
<tr><td><strong>Nombre</strong></td><td>{{.In.Name}}</td></tr>
<tr><td><strong>Email</strong></td><td>{{.In.Email}}</td></tr>
<tr><td><strong>Teléfono</strong></td><td>{{.In.Phone}}</td></tr>
<tr><td><strong>Cargo</strong></td><td>{{.In.Position}}</td></tr>
{{- if .In.Message}}
<tr><td><strong>Mensaje</strong></td><td>{{.In.Message}}</td></tr>
{{- end}}
{{- if .Att.PublicURL}}
<tr><td><strong>Hoja de vida</strong></td><td><a href="{{.Att.PublicURL}}">Ver archivo</a></td></tr>
{{- end}}
<tr><td><strong>Fecha</strong></td><td>{{.At}}</td></tr>
<tr><td><strong>Radicado</strong></td><td>{{.ID}}</td></tr>
</table>
`))

var complaintTmpl = template.Must(template.New("queja").Parse(`<h2>Nueva queja recibida</h2>
<table cellpadding="6" style="border-collapse:collapse;font-family:Arial,sans-serif">
<tr><td><strong>Nombre</strong></td><td>{{.In.Name}}</td></tr>
<tr><td><strong>Email</strong></td><td>{{.In.Email}}</td></tr>
<tr><td><strong>Teléfono</strong></td><td>{{.In.Phone}}</td></tr>
<tr><td><strong>Sucursal</strong></td><td>{{.In.Branch}}</td></tr>
<tr><td><strong>Asunto</strong></td><td>{{.In.Subject}}</td></tr>
<tr><td><strong>Mensaje</strong></td><td>{{.In.Message}}</td></tr>
{{- if .Att.PublicURL}}
<tr><td><strong>Adjunto</strong></td><td><a href="{{.Att.PublicURL}}">Ver archivo</a></td></tr>
{{- end}}
<tr><td><strong>Fecha</strong></td><td>{{.At}}</td></tr>
<tr><td><strong>Radicado</strong></td><td>{{.ID}}</td></tr>
</table>
`))

type mailView[T any] struct {
	ID  string
	At  string
	Att models.Attachment
	In  T
}

func composeJobApplication(id string, at time.Time, att models.Attachment, in JobApplicationInput) (string, string, error) {
	subject := "Nueva postulación: " + in.Position + " - " + in.Name
	html, err := render(jobApplicationTmpl, mailView[JobApplicationInput]{ID: id, At: at.Format(time.RFC3339), Att: att, In: in})
	return subject, html, err
}

func composeComplaint(id string, at time.Time, att models.Attachment, in ComplaintInput) (string, string, error) {
	subject := "Nueva queja: " + in.Subject + " - " + in.Name
	html, err := render(complaintTmpl, mailView[ComplaintInput]{ID: id, At: at.Format(time.RFC3339), Att: att, In: in})
	return subject, html, err
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
