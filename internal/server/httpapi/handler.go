// Package httpapi exposes the sealbox operations over HTTP. Author-facing
// routes sit behind bearer-token auth; the share channel is deliberately
// unauthenticated, guarded only by the capability token and the time lock.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/envelope"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/services"
)

// maxBodySize caps request bodies (1MB); sealing payloads are small.
const maxBodySize = 1024 * 1024

// Handler routes HTTP requests to the services.
type Handler struct {
	letters   *services.LetterService
	tokens    *services.ShareTokenService
	jwtSecret []byte
	log       logging.Logger
}

func NewHandler(letters *services.LetterService, tokens *services.ShareTokenService,
	jwtSecret []byte, log logging.Logger) *Handler {
	return &Handler{
		letters:   letters,
		tokens:    tokens,
		jwtSecret: jwtSecret,
		log:       log.With("module", "httpapi"),
	}
}

// --- wire types ---

type errorResponse struct {
	Error string `json:"error"`
}

type goneResponse struct {
	Reason      string `json:"reason"`
	Replacement string `json:"replacement,omitempty"`
}

type letterResponse struct {
	ID                      string     `json:"id"`
	VisibilityScope         string     `json:"visibilityScope"`
	FamilyID                *string    `json:"familyId,omitempty"`
	CiphertextRef           string     `json:"ciphertextRef"`
	UnlockAt                *time.Time `json:"unlockAt,omitempty"`
	IsUnlocked              bool       `json:"isUnlocked"`
	UnlockedAt              *time.Time `json:"unlockedAt,omitempty"`
	UnlockCodeRegeneratedAt *time.Time `json:"unlockCodeRegeneratedAt,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

func toLetterResponse(l *models.Letter) *letterResponse {
	return &letterResponse{
		ID:                      l.ID,
		VisibilityScope:         l.VisibilityScope,
		FamilyID:                l.FamilyID,
		CiphertextRef:           l.CiphertextRef,
		UnlockAt:                l.UnlockAt,
		IsUnlocked:              l.IsUnlocked,
		UnlockedAt:              l.UnlockedAt,
		UnlockCodeRegeneratedAt: l.UnlockCodeRegeneratedAt,
		CreatedAt:               l.CreatedAt,
		UpdatedAt:               l.UpdatedAt,
	}
}

type createLetterRequest struct {
	VisibilityScope    string     `json:"visibilityScope"`
	FamilyID           *string    `json:"familyId,omitempty"`
	DataKey            []byte     `json:"dataKey"`
	UnlockCode         string     `json:"unlockCode"`
	EncryptionIV       []byte     `json:"encryptionIv"`
	UnlockAt           *time.Time `json:"unlockAt,omitempty"`
	ReminderDaysBefore []int      `json:"reminderDaysBefore,omitempty"`
}

type createLetterResponse struct {
	Letter      *letterResponse `json:"letter"`
	BackupShare []byte          `json:"backupShare"`
	UploadURL   string          `json:"uploadUrl"`
}

type updateScheduleRequest struct {
	UnlockAt           *time.Time `json:"unlockAt"`
	ReminderDaysBefore []int      `json:"reminderDaysBefore,omitempty"`
}

type regenerateCodeRequest struct {
	Envelope *envelope.Envelope `json:"envelope"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type revokeRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type revokeResponse struct {
	WasActive bool `json:"wasActive"`
}

type rotateResponse struct {
	NewToken string  `json:"newToken"`
	OldToken *string `json:"oldToken,omitempty"`
}

type sharedResponse struct {
	LetterID      string             `json:"letterId"`
	CanUnlock     bool               `json:"canUnlock"`
	UnlockAt      *time.Time         `json:"unlockAt,omitempty"`
	ServerShare   []byte             `json:"serverShare,omitempty"`
	Envelope      *envelope.Envelope `json:"envelope,omitempty"`
	EncryptionIV  []byte             `json:"encryptionIv,omitempty"`
	CiphertextURL string             `json:"ciphertextUrl,omitempty"`
}

// --- author-facing handlers ---

func (h *Handler) handleCreateLetter(w http.ResponseWriter, r *http.Request) {
	var req createLetterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.letters.Create(r.Context(), userIDFromContext(r.Context()), &services.CreateLetterRequest{
		VisibilityScope:    req.VisibilityScope,
		FamilyID:           req.FamilyID,
		DataKey:            req.DataKey,
		UnlockCode:         req.UnlockCode,
		EncryptionIV:       req.EncryptionIV,
		UnlockAt:           req.UnlockAt,
		ReminderDaysBefore: req.ReminderDaysBefore,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createLetterResponse{
		Letter:      toLetterResponse(res.Letter),
		BackupShare: res.BackupShare,
		UploadURL:   res.UploadURL,
	})
}

func (h *Handler) handleListLetters(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	letters, err := h.letters.List(r.Context(), userIDFromContext(r.Context()), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := make([]*letterResponse, 0, len(letters))
	for _, l := range letters {
		result = append(result, toLetterResponse(l))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetLetter(w http.ResponseWriter, r *http.Request) {
	letter, err := h.letters.Get(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLetterResponse(letter))
}

func (h *Handler) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req updateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.letters.UpdateSchedule(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()),
		req.UnlockAt, req.ReminderDaysBefore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteLetter(w http.ResponseWriter, r *http.Request) {
	if err := h.letters.Delete(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegenerateCode(w http.ResponseWriter, r *http.Request) {
	var req regenerateCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.letters.RegenerateUnlockCode(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()), req.Envelope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	created, err := h.tokens.Create(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     created.Token,
		Status:    created.Status,
		CreatedAt: created.CreatedAt,
	})
}

func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}

	wasActive, err := h.tokens.Revoke(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{WasActive: wasActive})
}

func (h *Handler) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	created, oldToken, err := h.tokens.Rotate(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rotateResponse{NewToken: created.Token, OldToken: oldToken})
}

// --- share channel ---

// handleShared resolves a share token and, when the time lock allows,
// returns the release payload. A locked letter is a normal 200 with
// canUnlock=false. Revoked and rotated tokens are 410 with distinguishable
// reasons; only the rotated one carries a replacement hint. Unknown tokens
// are indistinguishable from never-issued ones.
func (h *Handler) handleShared(w http.ResponseWriter, r *http.Request) {
	payload, rec, err := h.tokens.Open(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTokenRevoked):
			writeJSON(w, http.StatusGone, goneResponse{Reason: "revoked"})
		case errors.Is(err, common.ErrTokenRotated):
			res := goneResponse{Reason: "rotated"}
			if rec != nil && rec.ReplacedByToken != nil {
				res.Replacement = *rec.ReplacedByToken
			}
			writeJSON(w, http.StatusGone, res)
		default:
			h.writeError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, sharedResponse{
		LetterID:      payload.LetterID,
		CanUnlock:     payload.CanUnlock,
		UnlockAt:      payload.UnlockAt,
		ServerShare:   payload.ServerShare,
		Envelope:      payload.Envelope,
		EncryptionIV:  payload.EncryptionIV,
		CiphertextURL: payload.CiphertextURL,
	})
}

// --- plumbing ---

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrAlreadyUnlocked):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already_unlocked"})
	case errors.Is(err, common.ErrAlreadyRegenerated):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already_regenerated"})
	case errors.Is(err, common.ErrorConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict"})
	default:
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
