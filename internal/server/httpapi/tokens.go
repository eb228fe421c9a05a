package httpapi

import "net/http"

type addressRequest struct {
	Local  string `json:"local"`
	Domain string `json:"domain"`
}

// addressStatus reports whether an address exists and has a verified owner.
func (h *Handler) addressStatus(w http.ResponseWriter, r *http.Request) {
	local := r.URL.Query().Get("local")
	domain := r.URL.Query().Get("domain")

	emailIdx, validated, err := h.emails.AddressStatus(r.Context(), local, domain)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"idx":       emailIdx,
		"validated": validated,
	})
}

// requestVerification issues an email verification token. The token is
// returned to the caller, which is in charge of delivering it; the service
// itself never sends mail.
func (h *Handler) requestVerification(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	token, err := h.emails.RequestVerification(r.Context(), req.Local, req.Domain)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *Handler) checkVerificationToken(w http.ResponseWriter, r *http.Request) {
	addr, err := h.emails.CheckToken(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"local":  addr.Local,
		"domain": addr.Domain,
	})
}

type verifyEmailRequest struct {
	Token   string `json:"token"`
	UserIdx int64  `json:"user_idx"`
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	emailIdx, err := h.emails.VerifyEmail(r.Context(), req.Token, req.UserIdx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"email_idx": emailIdx})
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	token, err := h.resets.RequestReset(r.Context(), req.Local, req.Domain)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *Handler) checkResetToken(w http.ResponseWriter, r *http.Request) {
	userIdx, err := h.resets.CheckToken(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_idx": userIdx})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	userIdx, err := h.resets.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"user_idx": userIdx})
}
