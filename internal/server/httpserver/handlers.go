package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/services"
)

// maxUploadBytes bounds multipart memory usage on upload.
const maxUploadBytes = 64 << 20

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Registration & Login successful",
		"user_id": user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
	})
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TOTPToken string `json:"totp_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password, req.TOTPToken)
	if err != nil {
		if errors.Is(err, common.ErrTwoFactorRequired) {
			writeJSON(w, http.StatusPartialContent, map[string]any{
				"requires_2fa": true,
				"message":      "Two-factor authentication required",
			})
			return
		}
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTokenValidity.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user_id": user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
	})
}

func (s *Server) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	secret, uri, err := s.totp.Setup(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":      secret,
		"otpauth_url": uri,
	})
}

type totpVerifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	var req totpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	if err := s.totp.Confirm(r.Context(), user.ID, req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "2FA successfully enabled"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		writeError(w, common.ErrorInternal)
		return
	}

	iv := r.FormValue("iv")
	key := r.FormValue("key")
	tag := r.FormValue("authTag")
	if iv == "" || key == "" || tag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Encryption details missing"})
		return
	}

	file, err := s.files.Upload(r.Context(), user, header.Filename, content, iv, key, tag)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Encrypted file uploaded successfully",
		"filename":  file.OriginalFilename,
		"file_id":   file.ID,
		"file_type": file.FileType,
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	// the path names whose listing is requested; only admins may list others
	requested := mux.Vars(r)["id"]
	if requested != user.ID && user.Role != models.RoleAdmin {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	list, err := s.files.ListAccessible(r.Context(), requested)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, f := range list {
		out = append(out, map[string]any{
			"id":          f.ID,
			"filename":    f.OriginalFilename,
			"uploaded_at": f.UploadedAt.Format(time.RFC3339),
			"size":        f.FileSize,
			"file_type":   f.FileType,
			"user_id":     f.UserID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	file, content, err := s.files.Download(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	// key material travels in headers, exactly as stored, for client-side
	// decryption
	w.Header().Set("Content-Type", file.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))
	w.Header().Set("X-Encryption-IV", file.EncryptionIV)
	w.Header().Set("X-Original-Filename", file.OriginalFilename)
	w.Header().Set("X-Encryption-key", file.EncryptionKey)
	w.Header().Set("X-authTag", file.AuthTag)
	w.Header().Set("Access-Control-Expose-Headers", "x-encryption-iv, x-original-filename,x-encryption-key,x-authTag")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	file, err := s.files.Delete(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "File deleted successfully",
		"filename": file.OriginalFilename,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := userFromContext(r.Context()); !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	list, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, u := range list {
		out = append(out, map[string]any{
			"id":    u.ID,
			"name":  u.Name,
			"email": u.Email,
			"role":  u.Role,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type permissionEntry struct {
	UserID     string `json:"userId"`
	AccessType string `json:"accessType"`
}

type uploadPermissionsRequest struct {
	FileID      string            `json:"fileId"`
	Permissions []permissionEntry `json:"permissions"`
}

func (s *Server) handleUploadPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	var req uploadPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON format in request body"})
		return
	}

	assignments := make([]services.GrantAssignment, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		assignments = append(assignments, services.GrantAssignment{UserID: p.UserID, AccessType: p.AccessType})
	}

	if err := s.permissions.Grant(r.Context(), user, req.FileID, assignments); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Permissions updated successfully",
		"file_id":     req.FileID,
		"permissions": req.Permissions,
	})
}

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := userFromContext(r.Context()); !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	grants, err := s.permissions.ListGrants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]permissionEntry, 0, len(grants))
	for _, g := range grants {
		out = append(out, permissionEntry{UserID: g.AssignedID, AccessType: g.AccessType})
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": out})
}

type generateShareLinkRequest struct {
	FileID        string `json:"file_id"`
	Expiration    int    `json:"expiration"`
	MaxDownloads  int    `json:"max_downloads"`
	AllowView     *bool  `json:"allow_view"`
	AllowDownload *bool  `json:"allow_download"`
}

func (s *Server) handleGenerateShareLink(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	var req generateShareLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	// capability flags default to true for parity with existing clients
	allowView, allowDownload := true, true
	if req.AllowView != nil {
		allowView = *req.AllowView
	}
	if req.AllowDownload != nil {
		allowDownload = *req.AllowDownload
	}

	link, err := s.shares.Create(r.Context(), user, req.FileID,
		time.Duration(req.Expiration)*time.Second, req.MaxDownloads, allowView, allowDownload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"share_link": s.publicBaseURL + "/access/" + link.Token,
		"expires_at": link.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	file, plaintext, err := s.shares.Redeem(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":     file.OriginalFilename,
		"file_type":    file.FileType,
		"file_size":    common.FormatBytes(file.FileSize),
		"file_content": base64.StdEncoding.EncodeToString(plaintext),
	})
}

func (s *Server) handleAccessInfo(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.shares.Peek(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":  file.OriginalFilename,
		"file_type": file.FileType,
		"file_size": common.FormatBytes(file.FileSize),
	})
}

type updateUserRequest struct {
	UserID string `json:"userid"`
	Role   string `json:"role"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok || caller.Role != models.RoleAdmin {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrorMalformed)
		return
	}

	if err := s.users.UpdateRole(r.Context(), req.UserID, req.Role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User role updated successfully"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok || caller.Role != models.RoleAdmin {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	if err := s.users.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
