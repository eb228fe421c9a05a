// Package httpapi exposes the account services over a JSON HTTP API. It
// translates requests into service calls and service errors into status
// codes; all business rules live in the services layer.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/directory"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/services"
)

// AccountService is the account surface the handlers need.
type AccountService interface {
	CreateUser(ctx context.Context, p services.CreateUserParams) (*models.User, error)
	DeleteUser(ctx context.Context, userIdx int64) error
	GetByIdx(ctx context.Context, userIdx int64) (*models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	Authenticate(ctx context.Context, username, password string) (int64, error)
	ChangePassword(ctx context.Context, userIdx int64, newPassword string) error
	ChangeShell(ctx context.Context, userIdx int64, shell string) error
	GetShell(ctx context.Context, userIdx int64) (string, error)
	Activate(ctx context.Context, userIdx int64) error
	Deactivate(ctx context.Context, userIdx int64) error
	AddMembership(ctx context.Context, userIdx, groupIdx int64) (int64, error)
	RemoveMembership(ctx context.Context, membershipIdx int64) error
	ListMemberships(ctx context.Context, userIdx int64) ([]models.UserMembership, error)
}

// EmailService is the email verification surface the handlers need.
type EmailService interface {
	RequestVerification(ctx context.Context, local, domain string) (string, error)
	CheckToken(ctx context.Context, token string) (*models.EmailAddress, error)
	VerifyEmail(ctx context.Context, token string, userIdx int64) (int64, error)
	GetByOwner(ctx context.Context, ownerIdx int64) ([]models.EmailAddress, error)
	AddressStatus(ctx context.Context, local, domain string) (int64, bool, error)
}

// PasswordResetService is the reset surface the handlers need.
type PasswordResetService interface {
	RequestReset(ctx context.Context, local, domain string) (string, error)
	CheckToken(ctx context.Context, token string) (int64, error)
	ResetPassword(ctx context.Context, token, newPassword string) (int64, error)
}

// PermissionService is the group/permission surface the handlers need.
type PermissionService interface {
	CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	DeleteGroup(ctx context.Context, groupIdx int64) error
	AddGroupRelation(ctx context.Context, supergroupIdx, subgroupIdx int64) (*models.GroupRelation, error)
	DeleteGroupRelation(ctx context.Context, relationIdx int64) error
	GroupReachableGroups(ctx context.Context, groupIdx int64) (map[int64]struct{}, error)
	CreatePermission(ctx context.Context, permission *models.Permission) (*models.Permission, error)
	DeletePermission(ctx context.Context, permissionIdx int64) error
	AddRequirement(ctx context.Context, groupIdx, permissionIdx int64) (*models.PermissionRequirement, error)
	DeleteRequirement(ctx context.Context, requirementIdx int64) error
	UserReachableGroups(ctx context.Context, userIdx int64) (map[int64]struct{}, error)
	CheckUserPermission(ctx context.Context, userIdx, permissionIdx int64) (bool, error)
}

// DirectoryService is the POSIX directory surface the handlers need.
type DirectoryService interface {
	PosixAccounts(ctx context.Context) ([]models.PosixAccount, error)
	PosixAccountByUsername(ctx context.Context, username string) (models.PosixAccount, error)
}

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	accounts    AccountService
	emails      EmailService
	resets      PasswordResetService
	permissions PermissionService
	directory   DirectoryService
	logger      logging.Logger
}

func NewHandler(accounts AccountService, emails EmailService, resets PasswordResetService, permissions PermissionService, dir DirectoryService, logger logging.Logger) *Handler {
	return &Handler{
		accounts:    accounts,
		emails:      emails,
		resets:      resets,
		permissions: permissions,
		directory:   dir,
		logger:      logger,
	}
}

// Routes builds the request mux. Method patterns give free 405 handling on
// wrong-method requests to known paths.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("POST /api/v1/users", h.createUser)
	mux.HandleFunc("GET /api/v1/users", h.listUsers)
	mux.HandleFunc("GET /api/v1/users/{idx}", h.getUser)
	mux.HandleFunc("DELETE /api/v1/users/{idx}", h.deleteUser)
	mux.HandleFunc("POST /api/v1/users/{idx}/password", h.changePassword)
	mux.HandleFunc("GET /api/v1/users/{idx}/shell", h.getShell)
	mux.HandleFunc("PUT /api/v1/users/{idx}/shell", h.changeShell)
	mux.HandleFunc("POST /api/v1/users/{idx}/activate", h.activateUser)
	mux.HandleFunc("POST /api/v1/users/{idx}/deactivate", h.deactivateUser)
	mux.HandleFunc("GET /api/v1/users/{idx}/emails", h.listUserEmails)

	mux.HandleFunc("POST /api/v1/auth/login", h.login)

	mux.HandleFunc("POST /api/v1/users/{idx}/memberships", h.addMembership)
	mux.HandleFunc("GET /api/v1/users/{idx}/memberships", h.listMemberships)
	mux.HandleFunc("DELETE /api/v1/memberships/{idx}", h.removeMembership)

	mux.HandleFunc("GET /api/v1/users/{idx}/reachable-groups", h.reachableGroups)
	mux.HandleFunc("GET /api/v1/users/{idx}/permissions/{permissionIdx}", h.checkPermission)

	mux.HandleFunc("POST /api/v1/groups", h.createGroup)
	mux.HandleFunc("DELETE /api/v1/groups/{idx}", h.deleteGroup)
	mux.HandleFunc("GET /api/v1/groups/{idx}/reachable-groups", h.groupReachableGroups)
	mux.HandleFunc("POST /api/v1/group-relations", h.addGroupRelation)
	mux.HandleFunc("DELETE /api/v1/group-relations/{idx}", h.deleteGroupRelation)

	mux.HandleFunc("POST /api/v1/permissions", h.createPermission)
	mux.HandleFunc("DELETE /api/v1/permissions/{idx}", h.deletePermission)
	mux.HandleFunc("POST /api/v1/permission-requirements", h.addRequirement)
	mux.HandleFunc("DELETE /api/v1/permission-requirements/{idx}", h.deleteRequirement)

	mux.HandleFunc("GET /api/v1/email-addresses", h.addressStatus)
	mux.HandleFunc("POST /api/v1/email-verification", h.requestVerification)
	mux.HandleFunc("GET /api/v1/email-verification/{token}", h.checkVerificationToken)
	mux.HandleFunc("POST /api/v1/email-verification/verify", h.verifyEmail)

	mux.HandleFunc("POST /api/v1/password-reset", h.requestReset)
	mux.HandleFunc("GET /api/v1/password-reset/{token}", h.checkResetToken)
	mux.HandleFunc("POST /api/v1/password-reset/reset", h.resetPassword)

	mux.HandleFunc("GET /api/v1/directory/posix-accounts", h.listPosixAccounts)
	mux.HandleFunc("GET /api/v1/directory/posix-accounts/{username}", h.getPosixAccount)

	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body of the form {"error":{"message":...}}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}

// writeServiceError maps service-layer sentinel errors to status codes.
// Anything unmapped is a 500 with the detail kept out of the response.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNoSuchEntry), errors.Is(err, directory.ErrNotProjectable):
		writeError(w, http.StatusNotFound, "no such entry")
	case errors.Is(err, common.ErrAuthenticationFailure):
		writeError(w, http.StatusUnauthorized, "authentication failure")
	case errors.Is(err, common.ErrNotActivated):
		writeError(w, http.StatusForbidden, "account not activated")
	case errors.Is(err, common.ErrExpiredToken):
		writeError(w, http.StatusGone, "token expired")
	case errors.Is(err, common.ErrResendLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "resend limit exceeded")
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathIdx parses the named numeric path segment.
func pathIdx(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
