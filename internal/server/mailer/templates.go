package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const (
	SubjectWelcome         = "Welcome to Xclusive Touch Digital Business Cards"
	SubjectResetPassword   = "Xclusive Touch - Reset your password"
	SubjectExchangeContact = "Xclusive Touch - Exchange Contact"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="background-color:#f6f9fc;padding:10px 0">
<div style="background-color:#ffffff;border:1px solid #f0f0f0;padding:45px;max-width:600px;margin:0 auto;font-size:16px;line-height:24px">
<img src="https://xclusivetouch.ca/assets/gold_blackbackground.png" width="200" alt="Xclusive Touch Logo" style="display:block;margin:0 auto">
{{template "body" .}}
</div></body></html>{{end}}`

const welcomeBody = `{{define "body"}}
<p>Hi {{.Name}},</p>
<p>Welcome to Xclusive Touch! We are thrilled to have you on board.</p>
<p>Please confirm your email address to activate your account. The link is valid for 24 hours.</p>
<p style="text-align:center"><a href="{{.Link}}" style="background-color:#D4AF37;border-radius:3px;color:#fff;padding:12px 20px;text-decoration:none">Confirm email</a></p>
<p>Need assistance? Reply to this email and our team will help.</p>
{{end}}`

const resetBody = `{{define "body"}}
<p>Hi {{.Name}},</p>
<p>Someone requested a password reset for your Xclusive Touch account. The link below is valid for 15 minutes.</p>
<p style="text-align:center"><a href="{{.Link}}" style="background-color:#D4AF37;border-radius:3px;color:#fff;padding:12px 20px;text-decoration:none">Reset password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>
{{end}}`

const exchangeBody = `{{define "body"}}
<p>Hi {{.Name}},</p>
<p>{{.SenderName}} has shared their contact information with you.</p>
<p>Email: {{.SenderEmail}}</p>
{{if .SenderPhone}}<p>Phone: {{.SenderPhone}}</p>{{end}}
{{if .Message}}<p>Message: {{.Message}}</p>{{end}}
{{end}}`

// ContactDetails is what a visitor shares through the exchange-contact form.
type ContactDetails struct {
	SenderName  string
	SenderEmail string
	SenderPhone string
	Message     string
}

// Templates renders the transactional emails. BaseURL prefixes links.
type Templates struct {
	baseURL  string
	welcome  *template.Template
	reset    *template.Template
	exchange *template.Template
}

func NewTemplates(baseURL string) *Templates {
	parse := func(body string) *template.Template {
		return template.Must(template.Must(template.New("email").Parse(layout)).Parse(body))
	}
	return &Templates{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		welcome:  parse(welcomeBody),
		reset:    parse(resetBody),
		exchange: parse(exchangeBody),
	}
}

// ConfirmLink is the address a new user follows to verify their email.
func (t *Templates) ConfirmLink(token string) string {
	return t.baseURL + "/api/confirm/" + token
}

// ResetLink is the front-end page that completes a password reset.
func (t *Templates) ResetLink(token string) string {
	return t.baseURL + "/reset-password/" + token
}

func (t *Templates) Welcome(to, name, confirmationToken string) (Message, error) {
	return t.render(t.welcome, to, SubjectWelcome, map[string]any{
		"Title": SubjectWelcome,
		"Name":  name,
		"Link":  t.ConfirmLink(confirmationToken),
	})
}

func (t *Templates) ResetPassword(to, name, resetToken string) (Message, error) {
	return t.render(t.reset, to, SubjectResetPassword, map[string]any{
		"Title": SubjectResetPassword,
		"Name":  name,
		"Link":  t.ResetLink(resetToken),
	})
}

func (t *Templates) ExchangeContact(to, ownerFirstName string, c ContactDetails) (Message, error) {
	return t.render(t.exchange, to, SubjectExchangeContact, map[string]any{
		"Title":       SubjectExchangeContact,
		"Name":        ownerFirstName,
		"SenderName":  c.SenderName,
		"SenderEmail": c.SenderEmail,
		"SenderPhone": c.SenderPhone,
		"Message":     c.Message,
	})
}

func (t *Templates) render(tpl *template.Template, to, subject string, data map[string]any) (Message, error) {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %q: %w", subject, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
