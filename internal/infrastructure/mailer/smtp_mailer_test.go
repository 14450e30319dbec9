package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingSender struct {
	messages []*gomail.Message
	err      error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	r.messages = append(r.messages, m...)
	return r.err
}

func TestSMTPMailer_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a multipart message", func(t *testing.T) {
		rec := &recordingSender{}
		m := newSMTPMailer(rec, "billing@academy.test", "Academy Billing", nil)

		err := m.Send(ctx, Email{
			To:       "student@example.com",
			Subject:  "Your subscription renews soon",
			TextBody: "Renews in 7 days",
			HTMLBody: "<p>Renews in 7 days</p>",
		})
		require.NoError(t, err)
		require.Len(t, rec.messages, 1)

		msg := rec.messages[0]
		assert.Equal(t, []string{"student@example.com"}, msg.GetHeader("To"))
		assert.Equal(t, []string{"Your subscription renews soon"}, msg.GetHeader("Subject"))

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Academy Billing")
		assert.Contains(t, buf.String(), "text/plain")
		assert.Contains(t, buf.String(), "text/html")
	})

	t.Run("rejects an empty recipient", func(t *testing.T) {
		rec := &recordingSender{}
		m := newSMTPMailer(rec, "billing@academy.test", "", nil)

		err := m.Send(ctx, Email{Subject: "x"})
		assert.ErrorIs(t, err, ErrNoRecipient)
		assert.Empty(t, rec.messages)
	})

	t.Run("wraps relay errors", func(t *testing.T) {
		relayErr := errors.New("connection refused")
		m := newSMTPMailer(&recordingSender{err: relayErr}, "billing@academy.test", "", nil)

		err := m.Send(ctx, Email{To: "student@example.com", Subject: "x", TextBody: "y"})
		assert.ErrorIs(t, err, relayErr)
	})
}
