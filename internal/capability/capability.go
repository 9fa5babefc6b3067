// Package capability issues and checks the two stateless capabilities of
// the comment flow: page attestations binding a comment id to the page it
// was requested for, and admin action signatures authorizing moderation.
package capability

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/alphabot-ai/perch/internal/normalize"
	"github.com/alphabot-ai/perch/internal/signer"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

var (
	ErrNormalization = errors.New("capability: page cannot be normalized")
	ErrEmptyID       = errors.New("capability: empty comment id")
	ErrUnknownAction = errors.New("capability: unknown action")
)

type Issuer struct {
	signer *signer.Signer
}

func NewIssuer(s *signer.Signer) *Issuer {
	return &Issuer{signer: s}
}

// ValidAction reports whether action is a known moderation action.
func ValidAction(action string) bool {
	return action == ActionApprove || action == ActionReject
}

func (i *Issuer) IssueAttestation(page, commentID string) (string, error) {
	payload, err := attestationPayload(page, commentID)
	if err != nil {
		return "", err
	}
	return i.signer.SignHex(payload), nil
}

// VerifyAttestation reports false for any page that fails normalization.
func (i *Issuer) VerifyAttestation(page, commentID, attestation string) bool {
	payload, err := attestationPayload(page, commentID)
	if err != nil {
		return false
	}
	return i.signer.VerifyHex(payload, attestation)
}

func (i *Issuer) IssueAdminSignature(action, commentID string) (string, error) {
	if commentID == "" {
		return "", ErrEmptyID
	}
	return i.signer.SignHex(adminPayload(action, commentID)), nil
}

func (i *Issuer) VerifyAdminSignature(action, commentID, signature string) bool {
	if commentID == "" {
		return false
	}
	return i.signer.VerifyHex(adminPayload(action, commentID), signature)
}

// ModerationLink builds the one-click moderation URL sent to admins.
func (i *Issuer) ModerationLink(baseURL, commentID, action string) (string, error) {
	if !ValidAction(action) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	sig, err := i.IssueAdminSignature(action, commentID)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("signature", sig)
	q.Set("action", action)
	return fmt.Sprintf("%s/api/admin/moderate/%s/?%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(commentID), q.Encode()), nil
}

func attestationPayload(page, commentID string) (string, error) {
	if commentID == "" {
		return "", ErrEmptyID
	}
	normalized, err := normalize.PageURL(page)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNormalization, err)
	}
	return normalized + "/" + commentID, nil
}

func adminPayload(action, commentID string) string {
	return "admin/" + action + "/" + commentID
}
