package memo

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// DocumentPayload is the canonical projection of an approved memo. For a
// given memo snapshot it is stable across calls.
type DocumentPayload struct {
	ID            string    `json:"id"`
	MemoNumber    string    `json:"memoNumber"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Department    string    `json:"department"`
	DateOfIssue   time.Time `json:"dateOfIssue"`
	SignatureText string    `json:"signatureText,omitempty"`
}

// DocumentGenerator turns an APPROVED memo into a numbered document.
// Stateless: it persists nothing and may be called repeatedly.
type DocumentGenerator struct {
	cfg Config
}

func NewDocumentGenerator(cfg Config) DocumentGenerator {
	return DocumentGenerator{cfg: cfg}
}

// Generate builds the structured payload. Fails with InvalidState unless the
// memo is APPROVED.
func (g DocumentGenerator) Generate(m Memo) (DocumentPayload, error) {
	if m.Status != StatusApproved {
		return DocumentPayload{}, InvalidStateErr{MemoID: m.ID, Status: m.Status, Operation: "generate document"}
	}
	issued := g.issueDate(m)
	return DocumentPayload{
		ID:            m.ID,
		MemoNumber:    g.memoNumber(m.ID, issued),
		Title:         m.Title,
		Body:          m.Body,
		Department:    m.Department,
		DateOfIssue:   issued,
		SignatureText: m.SignatureText,
	}, nil
}

// RenderHTML renders the payload into the fixed bilingual letterhead. The
// memo body is embedded verbatim: content is trusted to be safe markup
// already. Sanitize upstream before accepting untrusted bodies.
func (g DocumentGenerator) RenderHTML(m Memo) (string, error) {
	payload, err := g.Generate(m)
	if err != nil {
		return "", err
	}
	tz, _ := time.LoadLocation(g.cfg.DefaultTimeZone)
	if tz == nil {
		tz = time.UTC
	}
	tmpl := template.Must(template.New("memo").Funcs(template.FuncMap{
		"longDate": func(t time.Time) string {
			return t.In(tz).Format("2 January 2006")
		},
	}).Parse(letterheadTemplate))

	recipients := make([]string, 0, len(m.Recipients))
	for _, r := range m.Recipients {
		recipients = append(recipients, r.Name)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Payload    DocumentPayload
		Body       template.HTML
		OrgPrefix  string
		Priority   Priority
		Category   Category
		Recipients string
	}{
		Payload:    payload,
		Body:       template.HTML(payload.Body),
		OrgPrefix:  g.cfg.OrgPrefix,
		Priority:   m.Priority,
		Category:   m.Category,
		Recipients: strings.Join(recipients, ", "),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// memoNumber is {prefix}/{year}/{2-digit month}/{last 6 hex chars of the
// memo id, uppercase}.
func (g DocumentGenerator) memoNumber(id string, issued time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%s", g.cfg.OrgPrefix, issued.Year(), int(issued.Month()), shortRef(id))
}

func (g DocumentGenerator) issueDate(m Memo) time.Time {
	if m.DateOfIssue != nil {
		return *m.DateOfIssue
	}
	return time.Now().UTC()
}

func shortRef(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) > 6 {
		hex = hex[len(hex)-6:]
	}
	return strings.ToUpper(hex)
}

var letterheadTemplate = `
<!doctype html>
<html lang="id">
<head>
  <meta charset="utf-8" />
  <style>
    body { font-family: 'Times New Roman', Georgia, serif; margin: 48px; color: #111827; }
    .letterhead { text-align: center; border-bottom: 3px double #111827; padding-bottom: 12px; margin-bottom: 24px; }
    .letterhead h1 { margin: 0; font-size: 20px; letter-spacing: 1px; }
    .letterhead h2 { margin: 2px 0 0; font-size: 14px; font-weight: normal; font-style: italic; color: #374151; }
    .meta { margin-bottom: 24px; }
    .meta td { padding: 2px 8px 2px 0; vertical-align: top; font-size: 14px; }
    .meta .label { white-space: nowrap; }
    .meta .en { font-style: italic; color: #6b7280; font-size: 12px; }
    .subject { font-weight: bold; text-decoration: underline; }
    .body { font-size: 14px; line-height: 1.6; margin-bottom: 48px; }
    .signature { margin-left: auto; width: 280px; text-align: center; font-size: 14px; white-space: pre-line; }
  </style>
</head>
<body>
  <div class="letterhead">
    <h1>{{.Payload.Department}}</h1>
    <h2>Memo Dinas &mdash; Internal Office Memo</h2>
  </div>

  <table class="meta">
    <tr>
      <td class="label">Nomor<br /><span class="en">Number</span></td>
      <td>: {{.Payload.MemoNumber}}</td>
    </tr>
    <tr>
      <td class="label">Tanggal<br /><span class="en">Date</span></td>
      <td>: {{longDate .Payload.DateOfIssue}}</td>
    </tr>
    <tr>
      <td class="label">Kepada<br /><span class="en">To</span></td>
      <td>: {{.Recipients}}</td>
    </tr>
    <tr>
      <td class="label">Sifat<br /><span class="en">Priority</span></td>
      <td>: {{.Priority}}</td>
    </tr>
    <tr>
      <td class="label">Klasifikasi<br /><span class="en">Classification</span></td>
      <td>: {{.Category}}</td>
    </tr>
    <tr>
      <td class="label">Perihal<br /><span class="en">Subject</span></td>
      <td class="subject">: {{.Payload.Title}}</td>
    </tr>
  </table>

  <div class="body">{{.Body}}</div>

  {{if .Payload.SignatureText}}
  <div class="signature">{{.Payload.SignatureText}}</div>
  {{end}}
</body>
</html>
`
