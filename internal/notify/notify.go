// Package notify alerts site admins of new comments and hands them
// signed one-click moderation links.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/perch/internal/capability"
)

// Sender delivers one plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Recorder counts delivery outcomes.
type Recorder interface {
	EmailSent(ok bool)
}

type Site struct {
	Name        string
	SiteURL     string
	CommentsURL string
	AdminEmails []string
}

// NewComment describes the comment an alert is about.
type NewComment struct {
	ID    string
	Page  string
	Name  string
	Email string
	Text  string
}

type Notifier struct {
	sender   Sender
	issuer   *capability.Issuer
	site     Site
	log      zerolog.Logger
	recorder Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

func New(sender Sender, issuer *capability.Issuer, site Site, log zerolog.Logger, recorder Recorder) *Notifier {
	return &Notifier{
		sender:   sender,
		issuer:   issuer,
		site:     site,
		log:      log,
		recorder: recorder,
		timeout:  30 * time.Second,
	}
}

// Dispatch sends the alert in the background. Close waits for pending sends.
func (n *Notifier) Dispatch(c NewComment) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.Notify(ctx, c); err != nil {
			n.log.Error().Err(err).Str("comment_id", c.ID).Msg("notify admins")
		}
	}()
}

func (n *Notifier) Close() {
	n.wg.Wait()
}

// Notify emails every admin. It keeps going after a failed delivery and
// returns the first error.
func (n *Notifier) Notify(ctx context.Context, c NewComment) error {
	subject, body, err := n.Compose(c)
	if err != nil {
		return err
	}
	var first error
	for _, to := range n.site.AdminEmails {
		err := n.sender.Send(ctx, to, subject, body)
		if n.recorder != nil {
			n.recorder.EmailSent(err == nil)
		}
		if err != nil {
			n.log.Error().Err(err).Str("to", to).Str("comment_id", c.ID).Msg("send alert")
			if first == nil {
				first = err
			}
			continue
		}
		n.log.Info().Str("to", to).Str("comment_id", c.ID).Msg("sent alert")
	}
	return first
}

func (n *Notifier) Compose(c NewComment) (subject, body string, err error) {
	approve, err := n.issuer.ModerationLink(n.site.CommentsURL, c.ID, capability.ActionApprove)
	if err != nil {
		return "", "", err
	}
	reject, err := n.issuer.ModerationLink(n.site.CommentsURL, c.ID, capability.ActionReject)
	if err != nil {
		return "", "", err
	}

	subject = fmt.Sprintf("New comment on %s", n.site.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) said:\n\n%s\n\n", c.Name, c.Email, c.Text)
	fmt.Fprintf(&b, "%s%s#comment-%s\n\n--\n\n", strings.TrimRight(n.site.SiteURL, "/"), c.Page, c.ID)
	fmt.Fprintf(&b, "You can approve this comment:\n\n%s\n\n", approve)
	fmt.Fprintf(&b, "Or reject it (this will remove the comment):\n\n%s\n", reject)
	return subject, b.String(), nil
}

// LogSender writes alerts to the log instead of sending them.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Msg(body)
	return nil
}
