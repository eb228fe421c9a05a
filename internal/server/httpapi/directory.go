package httpapi

import (
	"net/http"

	"github.com/campuslab/accountd/internal/server/models"
)

// posixAccountResponse mirrors the attribute names an LDAP consumer would
// see on a posixAccount entry.
type posixAccountResponse struct {
	DN            string   `json:"dn"`
	UID           string   `json:"uid"`
	CN            string   `json:"cn"`
	Gecos         string   `json:"gecos"`
	HomeDirectory string   `json:"homeDirectory"`
	LoginShell    string   `json:"loginShell"`
	ObjectClass   []string `json:"objectClass"`
	UIDNumber     int64    `json:"uidNumber"`
	GIDNumber     int64    `json:"gidNumber"`
}

func toPosixAccountResponse(a models.PosixAccount) posixAccountResponse {
	return posixAccountResponse{
		DN:            a.DN,
		UID:           a.Attributes.UID,
		CN:            a.Attributes.CN,
		Gecos:         a.Attributes.Gecos,
		HomeDirectory: a.Attributes.HomeDirectory,
		LoginShell:    a.Attributes.LoginShell,
		ObjectClass:   a.Attributes.ObjectClass,
		UIDNumber:     a.Attributes.UIDNumber,
		GIDNumber:     a.Attributes.GIDNumber,
	}
}

func (h *Handler) listPosixAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.directory.PosixAccounts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]posixAccountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = toPosixAccountResponse(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": resp, "count": len(resp)})
}

func (h *Handler) getPosixAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.directory.PosixAccountByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPosixAccountResponse(account))
}
