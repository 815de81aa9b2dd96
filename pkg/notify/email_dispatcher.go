package notify

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/meterkit/pkg/email"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

var bodyTemplate = template.Must(template.New("usage").Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<p>Hello {{.Name}},</p>
{{if .Over}}
<p>Your workspace has used <strong>{{.Percent}}%</strong> of the storage included in the {{.Tier}} plan
({{.Used}} of {{.Quota}}). Storage above the quota is billed as overage:
<strong>{{.OverageBytes}}</strong> for an estimated <strong>${{.OverageCost}}</strong> this period.</p>
{{else}}
<p>Your workspace has used <strong>{{.Percent}}%</strong> of the storage included in the {{.Tier}} plan
({{.Used}} of {{.Quota}}). Once you pass 100%, additional storage is billed as overage.</p>
{{end}}
<p>Upgrade your plan or remove content you no longer need to stay within your quota.</p>
</body></html>`))

type bodyData struct {
	Name         string
	Over         bool
	Tier         string
	Percent      string
	Used         string
	Quota        string
	OverageBytes string
	OverageCost  string
}

// EmailDispatcher renders usage e-mails and sends them through an email.Sender.
type EmailDispatcher struct {
	sender email.Sender
	lang   language.Tag
}

// NewEmailDispatcher returns an EmailDispatcher. Panics if sender is nil.
func NewEmailDispatcher(sender email.Sender) *EmailDispatcher {
	if sender == nil {
		panic("notify: email sender is required")
	}
	return &EmailDispatcher{sender: sender, lang: language.English}
}

func (d *EmailDispatcher) Send(ctx context.Context, to Recipient, kind TemplateKind, v Violation) error {
	p := message.NewPrinter(d.lang)
	subject, err := subject(p, kind, v)
	if err != nil {
		return err
	}

	body, err := email.Render(ctx, d.component(p, to, kind, v))
	if err != nil {
		return errors.Join(ErrDispatchFailure, err)
	}

	if err := d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to.Ref,
		Subject:  subject,
		BodyHTML: body,
		Tag:      string(kind),
	}); err != nil {
		return errors.Join(ErrDispatchFailure, err)
	}
	return nil
}

func subject(p *message.Printer, kind TemplateKind, v Violation) (string, error) {
	switch kind {
	case TemplateUsageWarning:
		return p.Sprintf("You have used %.0f%% of your storage quota", v.Percent), nil
	case TemplateUsageOverage:
		return "Your storage is over quota", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, kind)
	}
}

// component renders the body; printers and casers are not shared between goroutines.
func (d *EmailDispatcher) component(p *message.Printer, to Recipient, kind TemplateKind, v Violation) templ.Component {
	name := to.Name
	if name == "" {
		name = "there"
	}
	data := bodyData{
		Name:         name,
		Over:         kind == TemplateUsageOverage,
		Tier:         cases.Title(d.lang).String(string(v.Tier)),
		Percent:      p.Sprintf("%.1f", v.Percent),
		Used:         usage.HumanBytes(v.TotalBytes),
		Quota:        usage.HumanBytes(v.QuotaBytes),
		OverageBytes: p.Sprintf("%d bytes", v.OverageBytes),
		OverageCost:  v.OverageCost.StringFixed(2),
	}
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return bodyTemplate.Execute(w, data)
	})
}
