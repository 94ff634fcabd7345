package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/go-chi/render"
)

const (
	msgAccountExists    = "Account already exists"
	msgAccountNotFound  = "Account does not exist"
	msgBadCredentials   = "Invalid credentials"
	msgOTPNotFound      = "OTP does not exist."
	msgOTPNotVerified   = "OTP has not been verified."
	msgTokenInvalid     = "Could not validate token."
	msgNotAuthenticated = "Not authenticated"
	msgUserNotFound     = "User does not exist!"
	msgUserInactive     = "User not activated!"
	msgNotPermitted     = "Unauthorized to perform this action!"
	msgFileTooLarge     = "File size must not exceed 4MB"
	msgInternal         = "Internal server error."
)

// errorMessages picks the wording of the ambiguous cases, which depends on
// whether the caller is an account flow or the access guard.
type errorMessages struct {
	notFound     string
	unauthorized string
}

var (
	accountMessages = errorMessages{notFound: msgAccountNotFound, unauthorized: msgBadCredentials}
	guardMessages   = errorMessages{notFound: msgUserNotFound, unauthorized: msgNotPermitted}
)

func detail(message string) map[string]any {
	return map[string]any{"detail": map[string]string{"message": message}}
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, detail(message))
}

// statusFor maps a service error onto a status and message. The order
// matters: specific errors wrap the generic sentinels they are checked before.
func statusFor(err error, msgs errorMessages) (int, string) {
	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusBadRequest, msgFileTooLarge
	case errors.Is(err, common.ErrOTPNotVerified):
		return http.StatusBadRequest, msgOTPNotVerified
	case errors.Is(err, common.ErrOTPNotFound):
		return http.StatusNotFound, msgOTPNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, msgAccountExists
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgs.notFound
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, msgTokenInvalid
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, msgs.unauthorized
	case errors.Is(err, common.ErrorInactive):
		return http.StatusBadRequest, msgUserInactive
	case errors.Is(err, common.ErrorBadRequest):
		return http.StatusBadRequest, "Bad request."
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeError renders err as {"detail": {"message": ...}}. Provider failures
// also carry the provider detail under "meta".
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msgs errorMessages) {
	var upstream *common.UpstreamError
	if errors.As(err, &upstream) {
		h.logger.Warn(r.Context(), "upstream failure", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]any{
			"detail": map[string]string{"message": upstream.Message, "meta": upstream.Meta},
		})
		return
	}

	status, message := statusFor(err, msgs)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeDetail(w, r, status, message)
}
