package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/go-accounts/internal/errors"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User any `json:"user"`
	tokensResponse
}

// Register — POST /users/register, multipart: fullName, username, email,
// password, avatar (файл), coverImage (файл, опционально).
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	cleanup, err := h.parseMultipart(w, r)
	defer cleanup()
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	avatar, err := h.saveFormFile(r, "avatar")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	cover, err := h.saveFormFile(r, "coverImage")
	if err != nil {
		removeFiles(avatar)
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Username:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, user, "User registered successfully")
}

// Login — POST /users/login. Пара токенов уходит и в cookie, и в теле.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), service.LoginInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSessionCookies(w, sess.Tokens)
	writeOK(w, http.StatusOK, loginResponse{
		User: sess.User,
		tokensResponse: tokensResponse{
			AccessToken:  sess.Tokens.AccessToken,
			RefreshToken: sess.Tokens.RefreshToken,
		},
	}, "User logged in successfully")
}

// RefreshToken — POST /users/refresh-token. Токен берётся из cookie,
// затем из тела {"refreshToken": "..."}.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(RefreshCookie); err == nil {
		token = c.Value
	}

	if token == "" {
		var in refreshRequest
		if err := h.decodeOptional(w, r, &in); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
		token = in.RefreshToken
	}

	sess, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setSessionCookies(w, sess.Tokens)
	writeOK(w, http.StatusOK, tokensResponse{
		AccessToken:  sess.Tokens.AccessToken,
		RefreshToken: sess.Tokens.RefreshToken,
	}, "Access token refreshed")
}

// Logout — POST /users/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Logout(r.Context(), uid); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	writeOK(w, http.StatusOK, struct{}{}, "User logged out")
}

// ChangePassword — POST /users/change-password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in changePasswordRequest
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), uid, in.OldPassword, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser — GET /users/current-user.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "User fetched successfully")
}

// UpdateAccount — PATCH /users/update-account.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in updateAccountRequest
	if err := h.decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.UpdateAccountDetails(r.Context(), uid, in.FullName, in.Email)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, "Account details updated successfully")
}

// UpdateAvatar — PATCH /users/avatar, multipart avatar.
func (h *Handlers) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.svc.UpdateAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage — PATCH /users/cover-image, multipart coverImage.
func (h *Handlers) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.svc.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater = func(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)

func (h *Handlers) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdater, message string) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cleanup, err := h.parseMultipart(w, r)
	defer cleanup()
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	path, err := h.saveFormFile(r, field)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if path == "" {
		apierrors.WriteError(w, r, missingFile(field))
		return
	}

	user, err := update(r.Context(), uid, path)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK, user, message)
}
