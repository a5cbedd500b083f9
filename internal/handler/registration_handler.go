package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/emaildid/internal/middleware"
	"github.com/hitoshi/emaildid/internal/model"
)

// RegistrationSession は登録ハンドラーが必要とするセッション操作。
// verification.Sessionが満たす。
type RegistrationSession interface {
	SubmitEmail(ctx context.Context, email string) error
	SubmitCode(ctx context.Context, candidate string) (string, error)
	Cancel()
	Snapshot() model.RegistrationStatus
	Identifier() (string, bool)
}

// SessionRegistry は登録IDからセッションを引くインターフェース。
type SessionRegistry interface {
	// Session は登録IDに対応するセッションを返す。なければ作成する。
	Session(registrationID string) RegistrationSession
	// Lookup は既存のセッションを返す。作成はしない。
	Lookup(registrationID string) (RegistrationSession, bool)
}

// RegistrationHandler はメールアドレス確認による登録のHTTPハンドラー。
type RegistrationHandler struct {
	sessions SessionRegistry
}

// NewRegistrationHandler はRegistrationHandlerを生成する。
func NewRegistrationHandler(sessions SessionRegistry) *RegistrationHandler {
	return &RegistrationHandler{sessions: sessions}
}

type startRegistrationRequest struct {
	Email string `json:"email"`
}

type confirmRegistrationRequest struct {
	Code string `json:"code"`
}

// registrationStatusResponse は登録状態のAPIレスポンス。
type registrationStatusResponse struct {
	State       string     `json:"state"`
	MaskedEmail string     `json:"masked_email,omitempty"`
	DID         string     `json:"did,omitempty"`
	CodeSentAt  *time.Time `json:"code_sent_at,omitempty"`
	Attempts    int        `json:"attempts"`
}

// Start はメールアドレスを受け付け、確認コードを送信する。
// POST /api/registrations
func (h *RegistrationHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	var req startRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body is not valid JSON"))
		return
	}

	session := h.sessions.Session(id)
	if err := session.SubmitEmail(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toRegistrationStatusResponse(session.Snapshot()))
}

// Confirm は確認コードを照合し、一致すればdid:key識別子を返す。
// POST /api/registrations/confirm
func (h *RegistrationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	var req confirmRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body is not valid JSON"))
		return
	}

	session, found := h.sessions.Lookup(id)
	if !found {
		handleServiceError(w, model.ErrNoPendingRegistration)
		return
	}

	identifier, err := session.SubmitCode(r.Context(), req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registrationStatusResponse{
		State: string(model.RegistrationConfirmed),
		DID:   identifier,
	})
}

// Cancel は保留中の登録を取り消す。
// DELETE /api/registrations
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	if session, found := h.sessions.Lookup(id); found {
		session.Cancel()
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status は現在の登録状態を返す。
// GET /api/registrations
func (h *RegistrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	status := model.RegistrationStatus{State: model.RegistrationIdle}
	if session, found := h.sessions.Lookup(id); found {
		status = session.Snapshot()
	}

	writeJSON(w, http.StatusOK, toRegistrationStatusResponse(status))
}

// registrationID はコンテキストから登録IDを取り出す。
// 登録ミドルウェアを通っていない場合は500を書き込みfalseを返す。
func registrationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.RegistrationIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return id, true
}

func toRegistrationStatusResponse(status model.RegistrationStatus) registrationStatusResponse {
	resp := registrationStatusResponse{
		State:       string(status.State),
		MaskedEmail: status.MaskedEmail,
		DID:         status.Identifier,
		Attempts:    status.Attempts,
	}
	if !status.CodeSentAt.IsZero() {
		sentAt := status.CodeSentAt.UTC()
		resp.CodeSentAt = &sentAt
	}
	return resp
}
