// Package httpapi exposes the account services over HTTP with chi. Responses
// follow the {"message", "data"} / {"detail": {"message"}} shapes existing
// clients of the backend expect.
package httpapi

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/go-chi/render"
)

// Multipart field names accepted by the upload route, in order of preference.
var uploadFields = []string{"file_in_memory", "file"}

// Slack over MaxUploadBytes for multipart framing, so an oversized file
// reaches UploadService and gets its specific message.
const multipartOverhead = 1 << 20

type Accounts interface {
	Register(ctx context.Context, r services.Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	RecoverInitiate(ctx context.Context, email string) (bool, error)
	RecoverResend(ctx context.Context, email string) (bool, error)
	VerifyOTP(ctx context.Context, email, code string) (bool, error)
	CompleteRecovery(ctx context.Context, email, newPassword string) error
}

type Guard interface {
	Resolve(ctx context.Context, token string, tier services.Tier) (*models.User, error)
}

type Uploads interface {
	Upload(ctx context.Context, content []byte) (string, error)
}

type Handler struct {
	accounts Accounts
	uploads  Uploads
	logger   logging.Logger
}

func NewHandler(accounts Accounts, uploads Uploads, logger logging.Logger) *Handler {
	return &Handler{accounts: accounts, uploads: uploads, logger: logger.With("module", "httpapi")}
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"heartbeat": true,
		"message":   "Backend is healthy and running.",
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.accounts.Register(r.Context(), services.Registration{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PrimaryEmail: req.PrimaryEmail,
		Password:     req.Password,
	})
	if err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}

	render.JSON(w, r, map[string]any{
		"message": "Account created successfully",
		"data":    user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}

	render.JSON(w, r, map[string]string{"token": token})
}

// RecoverInitiate answers 200 once the account exists, whether or not the
// email went out.
func (h *Handler) RecoverInitiate(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	if _, err := h.accounts.RecoverInitiate(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}

	render.JSON(w, r, map[string]string{
		"message": "Account recovery initiated. Kindly check your email for otp code.",
	})
}

func (h *Handler) RecoverResend(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	sent, err := h.accounts.RecoverResend(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}
	if !sent {
		writeDetail(w, r, http.StatusBadRequest, "OTP resend failed. Please try again.")
		return
	}

	render.JSON(w, r, map[string]string{"message": "OTP successfully resent!"})
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	ok, err := h.accounts.VerifyOTP(r.Context(), req.Email, req.OTPCode)
	if err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}
	if !ok {
		writeDetail(w, r, http.StatusBadRequest, "OTP verification failed. Please try again.")
		return
	}

	render.JSON(w, r, map[string]string{"message": "OTP verified!"})
}

func (h *Handler) CompleteRecovery(w http.ResponseWriter, r *http.Request) {
	var req completeRecoveryRequest
	if err := render.Bind(r, &req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	if err := h.accounts.CompleteRecovery(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}

	render.JSON(w, r, map[string]string{"message": "Account recovery successfully completed!"})
}

// Me returns the user resolved by RequireTier.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeDetail(w, r, http.StatusForbidden, msgNotAuthenticated)
		return
	}
	render.JSON(w, r, map[string]any{"data": user})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+multipartOverhead)

	content, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, r, http.StatusBadRequest, msgFileTooLarge)
			return
		}
		writeDetail(w, r, http.StatusBadRequest, "A file is required in the file_in_memory field.")
		return
	}

	url, err := h.uploads.Upload(r.Context(), content)
	if err != nil {
		h.writeError(w, r, err, accountMessages)
		return
	}

	render.JSON(w, r, map[string]any{
		"message": "File upload successfully",
		"data":    map[string]string{"upload_url": url},
	})
}

func readUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(services.MaxUploadBytes); err != nil {
		return nil, err
	}

	for _, field := range uploadFields {
		file, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return readAndClose(file)
	}
	return nil, http.ErrMissingFile
}

func readAndClose(f multipart.File) ([]byte, error) {
	defer f.Close()
	return io.ReadAll(f)
}
