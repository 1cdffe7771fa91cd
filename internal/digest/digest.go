// Package digest renders the e-mail body and subject for a pipeline run.
package digest

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"OpportunityMonitor/internal/domain"
)

const dayLayout = "2006-01-02"

var page = template.Must(template.New("digest").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<html>
  <body style="font-family:Arial, sans-serif;">
    <h2 style="margin:0 0 8px 0;">{{.Subject}}</h2>
{{- if .Items}}
    <p>New opportunities found: <b>{{len .Items}}</b> (showing up to {{.MaxItems}}).</p>
    <table style="border-collapse:collapse;width:100%;">
{{- range .Items}}
      <tr class="item">
        <td style="padding:8px;border-bottom:1px solid #eee;">
          <div class="title" style="font-size:14px;"><b>{{.Title}}</b></div>
          <div class="source" style="font-size:12px;color:#555;">{{.Source}}{{if .Tags}} — {{join .Tags ", "}}{{end}}</div>
          <div class="published" style="font-size:12px;color:#555;">Published: {{.Published}}</div>
          <div class="summary" style="margin:6px 0;font-size:12px;color:#333;">{{.Summary}}</div>
          <div><a href="{{.Link}}">Open</a> &nbsp; <span class="score" style="color:#999;">Score: {{.Score}}</span></div>
        </td>
      </tr>
{{- end}}
    </table>
{{- else}}
    <p class="empty">No new matches found for {{.Day}}.</p>
{{- end}}
    <p style="font-size:11px;color:#999;margin-top:16px;">
      Generated by opportunity-monitor.
    </p>
  </body>
</html>
`))

// Options control rendering.
type Options struct {
	SubjectPrefix string
	MaxItems      int
	Now           time.Time
}

// Subject joins the trimmed prefix and the YYYY-MM-DD date with a dash separator.
func Subject(prefix string, now time.Time) string {
	return strings.TrimSpace(prefix) + " — " + now.Format(dayLayout)
}

// Render produces the HTML body for items, which are expected to be ranked already.
func Render(items []domain.Item, opts Options) (string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Subject  string
		Day      string
		MaxItems int
		Items    []domain.Item
	}{
		Subject:  Subject(opts.SubjectPrefix, now),
		Day:      now.Format(dayLayout),
		MaxItems: opts.MaxItems,
		Items:    items,
	})
	if err != nil {
		return "", eris.Wrap(err, "digest: render")
	}
	return buf.String(), nil
}
