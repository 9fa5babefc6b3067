package httpapp

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alphabot-ai/perch/internal/format"
	"github.com/alphabot-ai/perch/internal/model"
	"github.com/alphabot-ai/perch/internal/normalize"
	"github.com/alphabot-ai/perch/internal/notify"
	"github.com/alphabot-ai/perch/internal/store"
)

const (
	maxNameLen  = 100
	maxEmailLen = 254
	maxTextLen  = 10000
)

// commentFields are sent with both the challenge and the comment request.
type commentFields struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Text    string  `json:"text"`
	ReplyTo *string `json:"reply_to"`
}

func (f *commentFields) validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Text = strings.TrimSpace(f.Text)
	if f.ReplyTo != nil && strings.TrimSpace(*f.ReplyTo) == "" {
		f.ReplyTo = nil
	}
	switch {
	case f.Name == "" || utf8.RuneCountInString(f.Name) > maxNameLen:
		return errors.New("name is required")
	case !strings.Contains(f.Email, "@") || len(f.Email) > maxEmailLen:
		return errors.New("email is invalid")
	case f.Text == "" || utf8.RuneCountInString(f.Text) > maxTextLen:
		return errors.New("text is required")
	}
	return nil
}

type challengeResponse struct {
	CommentID        string   `json:"comment_id"`
	Attestation      string   `json:"attestation"`
	Problems         []string `json:"problems"`
	DifficultyExpect uint8    `json:"difficulty_expect"`
	SolutionsExpect  uint8    `json:"solutions_expect"`
}

type commentRequest struct {
	commentFields
	CommentID   string   `json:"comment_id"`
	Attestation string   `json:"attestation"`
	Mints       []string `json:"mints"`
}

// handleChallenge godoc
//
//	@Summary		Request a comment challenge
//	@Description	Issue a comment id, its page attestation and a set of proof-of-work problems
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Param			page	query		string			true	"Page URL the comment is for"
//	@Param			body	body		commentFields	true	"Comment draft"
//	@Success		200		{object}	challengeResponse	"reason challenge"
//	@Failure		400		{object}	envelope		"invalid_page, invalid_body or invalid_comment"
//	@Failure		429		{object}	envelope		"rate_limited"
//	@Router			/api/challenge/ [post]
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "challenge", s.cfg.RateLimits.ChallengePerMinute) {
		return
	}
	page := r.URL.Query().Get("page")
	if _, err := normalize.PageURL(page); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_page", nil)
		return
	}
	var req commentFields
	if err := readJSON(w, r, &req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_body", nil)
		return
	}
	if err := req.validate(); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_comment", err.Error())
		return
	}

	commentID := uuid.NewString()
	attestation, err := s.issuer.IssueAttestation(page, commentID)
	if err != nil {
		writeReason(w, http.StatusUnprocessableEntity, "invalid_page", nil)
		return
	}
	ch, err := s.engine.Challenge(commentID)
	if err != nil {
		s.log.Error().Err(err).Msg("issue challenge")
		writeReason(w, http.StatusInternalServerError, "error", nil)
		return
	}

	writeReason(w, http.StatusOK, "challenge", challengeResponse{
		CommentID:        commentID,
		Attestation:      attestation,
		Problems:         ch.Problems,
		DifficultyExpect: ch.Difficulty,
		SolutionsExpect:  ch.SolutionsRequire,
	})
}

// handleComment godoc
//
//	@Summary		Submit a comment
//	@Description	Submit a comment with its attestation and solved problems
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Param			page	query		string			true	"Page URL the challenge was issued for"
//	@Param			body	body		commentRequest	true	"Comment with attestation and mints"
//	@Success		200		{object}	envelope		"reason submitted"
//	@Failure		401		{object}	envelope		"mint_invalid"
//	@Failure		403		{object}	envelope		"attestation_invalid"
//	@Failure		409		{object}	envelope		"duplicate"
//	@Failure		410		{object}	envelope		"page_not_found"
//	@Router			/api/comment/ [post]
func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute) {
		return
	}
	rawPage := r.URL.Query().Get("page")
	page, err := normalize.PageURL(rawPage)
	if err != nil {
		s.commentRejected(w, http.StatusBadRequest, "invalid_page")
		return
	}
	var req commentRequest
	if err := readJSON(w, r, &req); err != nil {
		s.commentRejected(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := req.validate(); err != nil {
		s.commentRejected(w, http.StatusBadRequest, "invalid_comment")
		return
	}
	if len(req.Mints) > int(s.engine.Options().ProblemsParallel) {
		s.commentRejected(w, http.StatusBadRequest, "too_many_mints")
		return
	}

	if !s.issuer.VerifyAttestation(rawPage, req.CommentID, req.Attestation) {
		s.log.Warn().Str("comment_id", req.CommentID).Str("page", page).Msg("attestation mismatch")
		s.commentRejected(w, http.StatusForbidden, "attestation_invalid")
		return
	}
	ok, err := s.engine.Verify(req.CommentID, req.Mints)
	if err != nil {
		s.log.Error().Err(err).Msg("verify mints")
		s.commentRejected(w, http.StatusInternalServerError, "error")
		return
	}
	if !ok {
		s.commentRejected(w, http.StatusUnauthorized, "mint_invalid")
		return
	}
	if s.checker != nil && !s.checker.PageExists(r.Context(), page) {
		s.commentRejected(w, http.StatusGone, "page_not_found")
		return
	}

	ctx := r.Context()
	pg, err := s.store.EnsurePage(ctx, page)
	if err != nil {
		s.internalError(w, err, "ensure page")
		return
	}

	if req.ReplyTo != nil {
		if status, reason := s.checkReply(r, req.CommentID, *req.ReplyTo, pg.ID); status != 0 {
			s.commentRejected(w, status, reason)
			return
		}
	}

	emailHash := normalize.EmailHash(req.Email)
	author, err := s.store.EnsureAuthor(ctx, emailHash, req.Name)
	if err != nil {
		s.internalError(w, err, "ensure author")
		return
	}

	comment := model.Comment{
		ID:        req.CommentID,
		PageID:    pg.ID,
		AuthorID:  author.ID,
		ReplyToID: req.ReplyTo,
		Text:      req.Text,
		Approved:  s.isAdmin(emailHash),
	}
	if err := s.store.CreateComment(ctx, &comment); err != nil {
		if errors.Is(err, store.ErrDuplicateComment) {
			s.commentRejected(w, http.StatusConflict, "duplicate")
			return
		}
		s.internalError(w, err, "create comment")
		return
	}

	s.log.Info().Str("comment_id", comment.ID).Str("page", page).Bool("approved", comment.Approved).Msg("comment submitted")
	s.metrics.CommentsTotal.WithLabelValues("submitted").Inc()

	if !comment.Approved && s.notifier != nil {
		s.notifier.Dispatch(notify.NewComment{
			ID:    comment.ID,
			Page:  page,
			Name:  req.Name,
			Email: req.Email,
			Text:  req.Text,
		})
	}

	writeReason(w, http.StatusOK, "submitted", map[string]any{
		"comment_id": comment.ID,
		"approved":   comment.Approved,
	})
}

// checkReply returns a non-zero status when replyTo cannot be replied to
// from a comment on pageID.
func (s *Server) checkReply(r *http.Request, commentID, replyTo, pageID string) (int, string) {
	if replyTo == commentID {
		return http.StatusBadRequest, "reply_self"
	}
	parent, err := s.store.GetComment(r.Context(), replyTo)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !parent.Approved) {
		return http.StatusGone, "reply_missing"
	}
	if err != nil {
		s.log.Error().Err(err).Msg("load reply parent")
		return http.StatusInternalServerError, "error"
	}
	if parent.PageID != pageID {
		return http.StatusNotAcceptable, "reply_other_page"
	}
	return 0, ""
}

func (s *Server) commentRejected(w http.ResponseWriter, status int, reason string) {
	s.metrics.CommentsTotal.WithLabelValues(reason).Inc()
	writeReason(w, status, reason, nil)
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.log.Error().Err(err).Msg(op)
	writeReason(w, http.StatusInternalServerError, "error", nil)
}

type commentView struct {
	ID       string          `json:"id"`
	AuthorID string          `json:"author_id"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar,omitempty"`
	IsOwner  bool            `json:"is_owner"`
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	UTC      string          `json:"utc"`
	Lines    []template.HTML `json:"lines"`
	Replies  []commentView   `json:"replies"`
}

// handlePageComments godoc
//
//	@Summary		List page comments
//	@Description	Approved comments of a page as an HTML fragment, or JSON when Accept asks for it
//	@Tags			Comments
//	@Produce		html
//	@Produce		json
//	@Param			page	query		string		true	"Page URL"
//	@Success		200		{object}	envelope	"Comment tree"
//	@Failure		400		{object}	envelope	"invalid_page"
//	@Router			/page/comments/ [get]
func (s *Server) handlePageComments(w http.ResponseWriter, r *http.Request) {
	page, err := normalize.PageURL(r.URL.Query().Get("page"))
	if err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_page", nil)
		return
	}

	var comments []model.Comment
	pg, err := s.store.FindPage(r.Context(), page)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.internalError(w, err, "find page")
		return
	default:
		comments, err = s.store.ListApprovedComments(r.Context(), pg.ID)
		if err != nil {
			s.internalError(w, err, "list comments")
			return
		}
	}

	views := s.commentViews(buildCommentTree(comments))
	if wantsJSON(r) {
		writeReason(w, http.StatusOK, "comments", map[string]any{
			"page":     page,
			"comments": views,
		})
		return
	}

	data := map[string]any{
		"Page":     page,
		"Comments": views,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Comments.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("render comments")
	}
}

func (s *Server) commentViews(nodes []model.CommentNode) []commentView {
	views := make([]commentView, 0, len(nodes))
	for _, n := range nodes {
		c := n.Comment
		views = append(views, commentView{
			ID:       c.ID,
			AuthorID: c.AuthorID,
			Name:     c.AuthorName,
			Avatar:   s.avatarURL(c.AuthorID),
			IsOwner:  s.isAdmin(c.AuthorEmailHash),
			Date:     format.Date(c.CreatedAt),
			Time:     format.Time(c.CreatedAt),
			UTC:      format.UTC(c.CreatedAt),
			Lines:    format.Paragraphs(c.Text),
			Replies:  s.commentViews(n.Children),
		})
	}
	return views
}

func (s *Server) avatarURL(authorID string) string {
	if s.avatars == nil {
		return ""
	}
	return "/avatar/" + authorID
}

// buildCommentTree nests replies under their parents. Replies whose parent
// is not in the list are dropped.
func buildCommentTree(comments []model.Comment) []model.CommentNode {
	byParent := make(map[string][]model.Comment)
	roots := make([]model.Comment, 0)
	for _, c := range comments {
		if c.ReplyToID == nil {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ReplyToID] = append(byParent[*c.ReplyToID], c)
	}
	var build func(parent model.Comment) model.CommentNode
	build = func(parent model.Comment) model.CommentNode {
		node := model.CommentNode{Comment: parent}
		for _, child := range byParent[parent.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	var nodes []model.CommentNode
	for _, root := range roots {
		nodes = append(nodes, build(root))
	}
	return nodes
}
