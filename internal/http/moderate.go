package httpapp

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/alphabot-ai/perch/internal/capability"
	"github.com/alphabot-ai/perch/internal/store"
)

// handleModerate godoc
//
//	@Summary		Moderate a comment
//	@Description	Apply a signed approve or reject link from an admin alert. Repeating an action is harmless.
//	@Tags			Moderation
//	@Produce		json
//	@Param			comment_id	path		string		true	"Comment ID"
//	@Param			action		query		string		true	"Moderation action"	Enums(approve, reject)
//	@Param			signature	query		string		true	"Admin signature for action and comment"
//	@Success		200			{object}	envelope	"approved, already_approved, rejected or already_rejected"
//	@Failure		400			{object}	envelope	"invalid_action"
//	@Failure		403			{object}	envelope	"signature_invalid"
//	@Router			/api/admin/moderate/{comment_id}/ [get]
func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	commentID := mux.Vars(r)["comment_id"]
	action := r.URL.Query().Get("action")
	signature := r.URL.Query().Get("signature")

	if !capability.ValidAction(action) {
		s.moderated(w, action, http.StatusBadRequest, "invalid_action")
		return
	}
	if !s.issuer.VerifyAdminSignature(action, commentID, signature) {
		s.log.Warn().Str("comment_id", commentID).Str("action", action).Msg("moderation signature mismatch")
		s.moderated(w, action, http.StatusForbidden, "signature_invalid")
		return
	}

	ctx := r.Context()
	switch action {
	case capability.ActionApprove:
		changed, err := s.store.ApproveComment(ctx, commentID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Rejection deletes the row, and only issued ids carry a valid signature.
			s.moderated(w, action, http.StatusOK, "already_rejected")
		case err != nil:
			s.internalError(w, err, "approve comment")
		case changed:
			s.log.Info().Str("comment_id", commentID).Msg("comment approved")
			s.moderated(w, action, http.StatusOK, "approved")
		default:
			s.moderated(w, action, http.StatusOK, "already_approved")
		}
	case capability.ActionReject:
		deleted, err := s.store.DeleteComment(ctx, commentID)
		switch {
		case err != nil:
			s.internalError(w, err, "reject comment")
		case deleted:
			s.log.Info().Str("comment_id", commentID).Msg("comment rejected")
			s.moderated(w, action, http.StatusOK, "rejected")
		default:
			s.moderated(w, action, http.StatusOK, "already_rejected")
		}
	}
}

func (s *Server) moderated(w http.ResponseWriter, action string, status int, reason string) {
	if !capability.ValidAction(action) {
		action = "unknown"
	}
	s.metrics.ModerationsTotal.WithLabelValues(action, reason).Inc()
	writeReason(w, status, reason, nil)
}

// handleAvatar godoc
//
//	@Summary		Author avatar
//	@Description	Serve the avatar image of a comment author
//	@Tags			Comments
//	@Produce		png
//	@Param			author_id	path	string	true	"Author ID"
//	@Success		200			"Image bytes"
//	@Failure		404			{object}	envelope	"not_found"
//	@Failure		410			{object}	envelope	"avatars_disabled"
//	@Router			/avatar/{author_id} [get]
func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	if s.avatars == nil {
		writeReason(w, http.StatusGone, "avatars_disabled", nil)
		return
	}
	img, err := s.avatars.Image(r.Context(), mux.Vars(r)["author_id"])
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		s.internalError(w, err, "load avatar")
		return
	}
	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(img.Data)
}
