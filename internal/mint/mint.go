// Package mint implements the hashcash-style proof-of-work used to rate
// comment submissions.
//
// A challenge is a batch of problem strings bound to one comment id. Each
// problem embeds a nonce that is the server's signature over the problem's
// parameters, so problems can be verified later without any server-side
// state. A client proves work by appending a proof to enough problems that
// the SHA-256 digest of the whole string starts with the required number of
// zero bits.
//
// Wire format of a problem:
//
//	H:<difficulty>:<expire_at>:<comment_id>/<index>:<nonce>:SHA-256
//
// and of a solution, which appends ":<proof>".
package mint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/perch/internal/signer"
)

const (
	// Algorithm is the only digest accepted in solutions.
	Algorithm = "SHA-256"

	DefaultDifficulty       uint8 = 17
	DefaultProblemsParallel uint8 = 10
	DefaultSolutionsRequire uint8 = 6
	DefaultValidity               = 300 * time.Second
)

var (
	ErrInvalidCommentID = errors.New("mint: comment id is empty or contains a reserved character")
	ErrClock            = errors.New("mint: clock is before the unix epoch")
)

// Options configures an Engine. Zero values are replaced by defaults.
type Options struct {
	Difficulty       uint8
	ProblemsParallel uint8
	SolutionsRequire uint8
	Validity         time.Duration
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Difficulty == 0 {
		o.Difficulty = DefaultDifficulty
	}
	if o.ProblemsParallel == 0 {
		o.ProblemsParallel = DefaultProblemsParallel
	}
	if o.SolutionsRequire == 0 {
		o.SolutionsRequire = DefaultSolutionsRequire
	}
	if o.Validity <= 0 {
		o.Validity = DefaultValidity
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Observer receives verification outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	ChallengeIssued(problems int)
	SolutionDiscarded(reason Reason)
	SolutionAccepted()
	Verified(ok bool)
}

type nopObserver struct{}

func (nopObserver) ChallengeIssued(int)      {}
func (nopObserver) SolutionDiscarded(Reason) {}
func (nopObserver) SolutionAccepted()        {}
func (nopObserver) Verified(bool)            {}

type Engine struct {
	signer   *signer.Signer
	opts     Options
	log      zerolog.Logger
	observer Observer
}

type EngineOption func(*Engine)

func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func New(s *signer.Signer, opts Options, options ...EngineOption) *Engine {
	e := &Engine{
		signer:   s,
		opts:     opts.withDefaults(),
		log:      zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Challenge is what a client needs to start working.
type Challenge struct {
	Problems         []string
	Difficulty       uint8
	SolutionsRequire uint8
}

func (e *Engine) Options() Options {
	return e.opts
}

// Challenge issues ProblemsParallel problems for commentID, all expiring
// Validity from now.
func (e *Engine) Challenge(commentID string) (Challenge, error) {
	if commentID == "" || strings.ContainsAny(commentID, ":/") {
		return Challenge{}, ErrInvalidCommentID
	}
	now, err := e.unixNow()
	if err != nil {
		return Challenge{}, err
	}
	expireAt := now + uint64(e.opts.Validity/time.Second)

	problems := make([]string, 0, e.opts.ProblemsParallel)
	for index := uint8(0); index < e.opts.ProblemsParallel; index++ {
		problems = append(problems, e.problem(e.opts.Difficulty, index, commentID, expireAt))
	}

	e.log.Debug().Str("comment_id", commentID).Int("problems", len(problems)).Msg("issued challenge")
	e.observer.ChallengeIssued(len(problems))

	return Challenge{
		Problems:         problems,
		Difficulty:       e.opts.Difficulty,
		SolutionsRequire: e.opts.SolutionsRequire,
	}, nil
}

func (e *Engine) problem(difficulty, index uint8, commentID string, expireAt uint64) string {
	d := strconv.FormatUint(uint64(difficulty), 10)
	i := strconv.FormatUint(uint64(index), 10)
	x := strconv.FormatUint(expireAt, 10)
	return fmt.Sprintf("H:%s:%s:%s/%s:%s:%s", d, x, commentID, i, e.nonce(d, i, commentID, x), Algorithm)
}

// nonce signs the problem parameters exactly as they appear on the wire.
func (e *Engine) nonce(difficulty, index, commentID, expireAt string) string {
	return e.signer.SignBase64URL(nonceTemplate(difficulty, index, commentID, expireAt))
}

func nonceTemplate(difficulty, index, commentID, expireAt string) string {
	return difficulty + ">" + index + ">" + commentID + ">" + expireAt
}

// Verify counts the solutions that pass every check and reports whether at
// least SolutionsRequire did. Invalid entries are discarded individually;
// the only error is an unusable clock.
func (e *Engine) Verify(referenceCommentID string, solutions []string) (bool, error) {
	now, err := e.unixNow()
	if err != nil {
		return false, err
	}

	seen := make(map[uint8]struct{}, len(solutions))
	verified := 0
	for _, raw := range solutions {
		reason := e.check(raw, referenceCommentID, now, seen)
		if reason != ReasonNone {
			e.log.Warn().Str("comment_id", referenceCommentID).Str("reason", string(reason)).Msg("discarded solution")
			e.observer.SolutionDiscarded(reason)
			continue
		}
		e.observer.SolutionAccepted()
		verified++
	}

	ok := verified >= int(e.opts.SolutionsRequire)
	e.log.Info().
		Str("comment_id", referenceCommentID).
		Int("submitted", len(solutions)).
		Int("verified", verified).
		Bool("ok", ok).
		Msg("verified solutions")
	e.observer.Verified(ok)
	return ok, nil
}

func (e *Engine) check(raw, referenceCommentID string, now uint64, seen map[uint8]struct{}) Reason {
	sol, err := ParseSolution(raw)
	if err != nil {
		return ReasonMalformed
	}
	if !e.signer.VerifyBase64URL(nonceTemplate(sol.Difficulty, sol.Index, sol.CommentID, sol.ExpireAt), sol.Nonce) {
		return ReasonTampered
	}
	expireAt, err := strconv.ParseUint(sol.ExpireAt, 10, 64)
	if err != nil || now >= expireAt {
		return ReasonExpired
	}
	if sol.CommentID != referenceCommentID {
		return ReasonForeign
	}
	if sol.Algorithm != Algorithm {
		return ReasonAlgorithm
	}
	index, err := strconv.ParseUint(sol.Index, 10, 8)
	if err != nil {
		return ReasonMalformed
	}
	if _, dup := seen[uint8(index)]; dup {
		return ReasonDuplicate
	}
	seen[uint8(index)] = struct{}{}

	difficulty, err := strconv.ParseUint(sol.Difficulty, 10, 8)
	if err != nil {
		return ReasonMalformed
	}
	if !HasWork(raw, uint8(difficulty)) {
		return ReasonInsufficientWork
	}
	return ReasonNone
}

func (e *Engine) unixNow() (uint64, error) {
	secs := e.opts.Now().Unix()
	if secs < 0 {
		return 0, ErrClock
	}
	return uint64(secs), nil
}
