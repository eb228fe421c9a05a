package httpapi

import (
	"net/http"
	"time"

	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/services"
)

// userResponse is the JSON shape of a user. Password digests never leave
// the services layer.
type userResponse struct {
	Idx               int64   `json:"idx"`
	Username          *string `json:"username"`
	Name              string  `json:"name"`
	UID               int64   `json:"uid"`
	Shell             *string `json:"shell"`
	PreferredLanguage string  `json:"preferred_language"`
	Activated         bool    `json:"activated"`
	CreatedAt         string  `json:"created_at"`
	LastLoginAt       *string `json:"last_login_at"`
}

func toUserResponse(u *models.User) userResponse {
	resp := userResponse{
		Idx:               u.Idx,
		Username:          u.Username,
		Name:              u.Name,
		UID:               u.UID,
		Shell:             u.Shell,
		PreferredLanguage: string(u.PreferredLanguage),
		Activated:         u.Activated,
		CreatedAt:         u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		s := u.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &s
	}
	return resp
}

type createUserRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	Name              string `json:"name"`
	Shell             string `json:"shell"`
	PreferredLanguage string `json:"preferred_language"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.accounts.CreateUser(r.Context(), services.CreateUserParams{
		Username:          req.Username,
		Password:          req.Password,
		Name:              req.Name,
		Shell:             req.Shell,
		PreferredLanguage: models.Language(req.PreferredLanguage),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp, "count": len(resp)})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	user, err := h.accounts.GetByIdx(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	if err := h.accounts.DeleteUser(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	userIdx, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_idx": userIdx})
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), idx, req.Password); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getShell(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	shell, err := h.accounts.GetShell(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shell": shell})
}

type changeShellRequest struct {
	Shell string `json:"shell"`
}

func (h *Handler) changeShell(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	var req changeShellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.accounts.ChangeShell(r.Context(), idx, req.Shell); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activateUser(w http.ResponseWriter, r *http.Request) {
	h.setActivated(w, r, true)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActivated(w, r, false)
}

func (h *Handler) setActivated(w http.ResponseWriter, r *http.Request, activated bool) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	if activated {
		err = h.accounts.Activate(r.Context(), idx)
	} else {
		err = h.accounts.Deactivate(r.Context(), idx)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMembershipRequest struct {
	GroupIdx int64 `json:"group_idx"`
}

func (h *Handler) addMembership(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	var req addMembershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	membershipIdx, err := h.accounts.AddMembership(r.Context(), idx, req.GroupIdx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"membership_idx": membershipIdx})
}

func (h *Handler) removeMembership(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid membership index")
		return
	}

	if err := h.accounts.RemoveMembership(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMemberships(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	memberships, err := h.accounts.ListMemberships(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type membershipResponse struct {
		Idx      int64 `json:"idx"`
		GroupIdx int64 `json:"group_idx"`
	}
	resp := make([]membershipResponse, len(memberships))
	for i, m := range memberships {
		resp[i] = membershipResponse{Idx: m.Idx, GroupIdx: m.GroupIdx}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": resp})
}

func (h *Handler) listUserEmails(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	addrs, err := h.emails.GetByOwner(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type emailResponse struct {
		Idx    int64  `json:"idx"`
		Local  string `json:"local"`
		Domain string `json:"domain"`
	}
	resp := make([]emailResponse, len(addrs))
	for i, a := range addrs {
		resp[i] = emailResponse{Idx: a.Idx, Local: a.Local, Domain: a.Domain}
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": resp})
}
