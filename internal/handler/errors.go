package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/emaildid/internal/middleware"
	"github.com/hitoshi/emaildid/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError は登録フローから返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if apiErr := toAPIError(err); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// 既知のドメインエラー以外は内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// toAPIError はドメインのセンチネルエラーをAPIErrorに変換する。
// 対応するものがなければnilを返す。
func toAPIError(err error) *model.APIError {
	switch {
	case errors.Is(err, model.ErrInvalidEmail):
		return model.NewInvalidEmailError()
	case errors.Is(err, model.ErrInvalidIdentifier), errors.Is(err, model.ErrInvalidKeyLength):
		return model.NewInvalidIdentifierError(err.Error())
	case errors.Is(err, model.ErrKeyGeneration):
		return model.NewKeyGenerationFailedError()
	case errors.Is(err, model.ErrDelivery):
		return model.NewDeliveryFailedError()
	case errors.Is(err, model.ErrCodeMismatch):
		return model.NewCodeMismatchError()
	case errors.Is(err, model.ErrCodeExpired):
		return model.NewCodeExpiredError()
	case errors.Is(err, model.ErrTooManyAttempts):
		return model.NewTooManyAttemptsError()
	case errors.Is(err, model.ErrNoPendingRegistration):
		return model.NewNoPendingRegistrationError()
	case errors.Is(err, model.ErrKeyNotRetained):
		return model.NewKeyNotRetainedError()
	case errors.Is(err, model.ErrBinding):
		return model.NewInvalidDigestError()
	case errors.Is(err, model.ErrNotFound):
		return model.NewBindingNotFoundError()
	}
	return nil
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidEmail, model.ErrCodeInvalidIdentifier,
		model.ErrCodeInvalidRequest, model.ErrCodeInvalidDigest:
		return http.StatusBadRequest
	case model.ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	case model.ErrCodeNoPendingRegistration, model.ErrCodeIdentityNotIssued, model.ErrCodeKeyNotRetained:
		return http.StatusConflict
	case model.ErrCodeCodeMismatch:
		return http.StatusUnprocessableEntity
	case model.ErrCodeCodeExpired:
		return http.StatusGone
	case model.ErrCodeTooManyAttempts:
		return http.StatusTooManyRequests
	case model.ErrCodeBindingNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
