package email_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{SendTo: "ops@acme.test", Subject: "Usage", BodyHTML: "<p>hi</p>"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mod    func(*email.SendEmailParams)
		errMsg string
	}{
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = " " }, "recipient is required"},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "nope" }, "valid email"},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }, "subject"},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mod(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo: "ops@acme.test", Subject: "Usage at 85%", BodyHTML: "<p>85%</p>", Tag: "usage_warning",
	})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*usage_warning.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "ops@acme.test", meta["send_to"])

	body, err := os.ReadFile(strings.TrimSuffix(files[0], ".json") + ".html")
	require.NoError(t, err)
	assert.Equal(t, "<p>85%</p>", string(body))

	assert.ErrorIs(t, sender.SendEmail(context.Background(), email.SendEmailParams{}), email.ErrInvalidParams)
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	s, err := email.NewSender(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)

	_, err = email.NewPostmarkClient(email.Config{PostmarkServerToken: "a", PostmarkAccountToken: "b", SenderEmail: "bad", SupportEmail: "s@x.io"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	s, err = email.NewSender(email.Config{PostmarkServerToken: "a", PostmarkAccountToken: "b", SenderEmail: "billing@x.io", SupportEmail: "s@x.io"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestRender(t *testing.T) {
	t.Parallel()

	html, err := email.Render(context.Background(), templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<b>ok</b>")
		return err
	}))
	require.NoError(t, err)
	assert.Equal(t, "<b>ok</b>", html)

	_, err = email.Render(context.Background(), templ.ComponentFunc(func(context.Context, io.Writer) error {
		return io.ErrShortWrite
	}))
	assert.ErrorIs(t, err, email.ErrFailedToRender)
}
