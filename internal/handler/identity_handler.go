package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/emaildid/internal/did"
	"github.com/hitoshi/emaildid/internal/model"
)

// Signer は保持している秘密鍵で署名する。keyvault.Vaultが満たす。
type Signer interface {
	Sign(identifier string, message []byte) ([]byte, error)
}

// IdentityHandler は発行済みdid:keyによる署名と検証のHTTPハンドラー。
type IdentityHandler struct {
	sessions SessionRegistry
	signer   Signer // nilの場合は鍵を保持していない
}

// NewIdentityHandler はIdentityHandlerを生成する。
func NewIdentityHandler(sessions SessionRegistry, signer Signer) *IdentityHandler {
	return &IdentityHandler{sessions: sessions, signer: signer}
}

type signRequest struct {
	Message string `json:"message"` // base64
}

type signResponse struct {
	DID       string `json:"did"`
	Signature string `json:"signature"` // base64
}

type verifyRequest struct {
	DID       string `json:"did"`
	Message   string `json:"message"`   // base64
	Signature string `json:"signature"` // base64
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Sign はセッションで発行されたdid:keyの秘密鍵でメッセージに署名する。
// POST /api/identities/sign
func (h *IdentityHandler) Sign(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body is not valid JSON"))
		return
	}
	message, err := base64.StdEncoding.DecodeString(req.Message)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("message must be base64"))
		return
	}

	session, found := h.sessions.Lookup(id)
	if !found {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewIdentityNotIssuedError())
		return
	}
	identifier, issued := session.Identifier()
	if !issued {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewIdentityNotIssuedError())
		return
	}
	if h.signer == nil {
		handleServiceError(w, model.ErrKeyNotRetained)
		return
	}

	signature, err := h.signer.Sign(identifier, message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signResponse{
		DID:       identifier,
		Signature: base64.StdEncoding.EncodeToString(signature),
	})
}

// Verify はdid:key識別子だけを使って署名を検証する。
// POST /api/identities/verify
func (h *IdentityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body is not valid JSON"))
		return
	}

	message, err := base64.StdEncoding.DecodeString(req.Message)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("message must be base64"))
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("signature must be base64"))
		return
	}

	valid, err := did.Verify(req.DID, message, signature)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}
