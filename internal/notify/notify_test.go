package notify

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/perch/internal/capability"
	"github.com/alphabot-ai/perch/internal/logger"
	"github.com/alphabot-ai/perch/internal/signer"
)

type sent struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, sent{to, subject, body})
	return nil
}

type counter struct {
	mu       sync.Mutex
	ok, fail int
}

func (c *counter) EmailSent(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.ok++
	} else {
		c.fail++
	}
}

func newNotifier(t *testing.T, sender Sender, rec Recorder) (*Notifier, *capability.Issuer) {
	t.Helper()
	s, err := signer.New([]byte("secret"))
	require.NoError(t, err)
	iss := capability.NewIssuer(s)
	site := Site{
		Name:        "Example",
		SiteURL:     "https://example.com/",
		CommentsURL: "https://comments.example.com",
		AdminEmails: []string{"a@example.com", "b@example.com"},
	}
	return New(sender, iss, site, logger.Nop().Module("notify"), rec), iss
}

var linkPattern = regexp.MustCompile(`https://comments\.example\.com/api/admin/moderate/\S+`)

func TestCompose(t *testing.T) {
	n, iss := newNotifier(t, &fakeSender{}, nil)

	subject, body, err := n.Compose(NewComment{ID: "c1", Page: "/blog/post/", Name: "Ada", Email: "ada@example.com", Text: "Nice post"})
	require.NoError(t, err)

	assert.Equal(t, "New comment on Example", subject)
	assert.Contains(t, body, "Ada (ada@example.com) said:")
	assert.Contains(t, body, "https://example.com/blog/post/#comment-c1")

	links := linkPattern.FindAllString(body, -1)
	require.Len(t, links, 2)
	for i, action := range []string{capability.ActionApprove, capability.ActionReject} {
		u, err := url.Parse(links[i])
		require.NoError(t, err)
		assert.Equal(t, action, u.Query().Get("action"))
		assert.True(t, iss.VerifyAdminSignature(action, "c1", u.Query().Get("signature")))
	}
}

func TestNotifyAllAdmins(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"a@example.com": true}}
	rec := &counter{}
	n, _ := newNotifier(t, sender, rec)

	err := n.Notify(context.Background(), NewComment{ID: "c1", Page: "/", Name: "Ada", Email: "ada@example.com", Text: "hi"})
	assert.Error(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "b@example.com", sender.sent[0].to)
	assert.Equal(t, 1, rec.ok)
	assert.Equal(t, 1, rec.fail)
}

func TestDispatchAndClose(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newNotifier(t, sender, nil)

	n.Dispatch(NewComment{ID: "c1", Page: "/", Name: "Ada", Email: "ada@example.com", Text: "hi"})
	n.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sent, 2)
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, StartTLS: true, FromName: "Comments", FromEmail: "comments@example.com"})

	msg, err := s.message("a@example.com", "subject", "body")
	require.NoError(t, err)
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, rcpts)

	_, err = s.message("not an address", "subject", "body")
	assert.Error(t, err)

	_, err = s.client()
	assert.NoError(t, err)
}
