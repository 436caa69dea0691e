package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_Links(t *testing.T) {
	tpl := NewTemplates("https://xtouch.example/")

	assert.Equal(t, "https://xtouch.example/api/confirm/abc", tpl.ConfirmLink("abc"))
	assert.Equal(t, "https://xtouch.example/reset-password/abc", tpl.ResetLink("abc"))
}

func TestTemplates_Welcome(t *testing.T) {
	msg, err := NewTemplates("https://xtouch.example").Welcome("jane@example.com", "jane", "tok123")
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, SubjectWelcome, msg.Subject)
	assert.Contains(t, msg.HTML, "Hi jane,")
	assert.Contains(t, msg.HTML, `href="https://xtouch.example/api/confirm/tok123"`)
}

func TestTemplates_ResetPassword(t *testing.T) {
	msg, err := NewTemplates("https://xtouch.example").ResetPassword("jane@example.com", "jane", "rst")
	require.NoError(t, err)

	assert.Equal(t, SubjectResetPassword, msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://xtouch.example/reset-password/rst"`)
}

func TestTemplates_ExchangeContactEscapes(t *testing.T) {
	msg, err := NewTemplates("").ExchangeContact("owner@example.com", "Jane", ContactDetails{
		SenderName:  "<script>alert(1)</script>",
		SenderEmail: "bob@example.com",
		Message:     "let's talk",
	})
	require.NoError(t, err)

	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, SubjectExchangeContact, msg.Subject)
	assert.Contains(t, msg.HTML, "Hi Jane,")
	assert.Contains(t, msg.HTML, "bob@example.com")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.NotContains(t, msg.HTML, "Phone:")
}
