package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/emaildid/internal/delivery"
)

// relayErrorResponse はコード中継エンドポイントのエラーボディ。
// RelayClientを含む既存の呼び出し元と互換の形式を保つ。
type relayErrorResponse struct {
	Error string `json:"error"`
}

type relayOKResponse struct {
	OK bool `json:"ok"`
}

// RelayHandler は {email, code} を受け取り、メールで確認コードを送る中継エンドポイント。
// 送信は下流のDelivererに委ね、再試行はしない。
type RelayHandler struct {
	deliverer delivery.Deliverer
	logger    *slog.Logger
}

// NewRelayHandler はRelayHandlerを生成する。
func NewRelayHandler(deliverer delivery.Deliverer, logger *slog.Logger) *RelayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayHandler{deliverer: deliverer, logger: logger}
}

// ServeHTTP はコード送信要求を処理する。
// POST /api/send-code
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req delivery.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, relayErrorResponse{Error: "Email and code are required"})
		return
	}

	if err := h.deliverer.Deliver(r.Context(), req.Email, req.Code); err != nil {
		h.logger.Error("code relay failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, relayErrorResponse{Error: "Failed to send email"})
		return
	}

	writeJSON(w, http.StatusOK, relayOKResponse{OK: true})
}
