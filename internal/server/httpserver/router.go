package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// router builds the URL map. Everything under /api requires a session cookie
// except register, login and share redemption; /health is unauthenticated.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// public surface
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/access/{token}", s.handleAccess).Methods(http.MethodGet)
	api.HandleFunc("/access/{token}/info", s.handleAccessInfo).Methods(http.MethodGet)

	// authenticated surface
	authed := api.PathPrefix("/").Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	authed.HandleFunc("/files/{id}", s.handleListFiles).Methods(http.MethodGet)
	authed.HandleFunc("/download/{id}", s.handleDownload).Methods(http.MethodGet)
	authed.HandleFunc("/delete/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	authed.HandleFunc("/totp/setup", s.handleTOTPSetup).Methods(http.MethodPost)
	authed.HandleFunc("/totp/verify", s.handleTOTPVerify).Methods(http.MethodPost)
	authed.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	authed.HandleFunc("/uploadpermissions", s.handleUploadPermissions).Methods(http.MethodPost)
	authed.HandleFunc("/permissions/{id}", s.handleListPermissions).Methods(http.MethodGet)
	authed.HandleFunc("/generate", s.handleGenerateShareLink).Methods(http.MethodPost)
	authed.HandleFunc("/updateUser", s.handleUpdateUser).Methods(http.MethodPost)
	authed.HandleFunc("/deleteUser/{id}", s.handleDeleteUser).Methods(http.MethodDelete)

	return r
}
