package httpapi

import (
	"net/http"
	"sort"

	"github.com/campuslab/accountd/internal/server/models"
)

type translationJSON struct {
	Korean  string `json:"ko"`
	English string `json:"en"`
}

func (t translationJSON) model() models.Translation {
	return models.Translation{Korean: t.Korean, English: t.English}
}

type namedEntityRequest struct {
	Name        translationJSON `json:"name"`
	Description translationJSON `json:"description"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req namedEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	group, err := h.permissions.CreateGroup(r.Context(), &models.Group{
		Name:        req.Name.model(),
		Description: req.Description.model(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"idx": group.Idx})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	if err := h.permissions.DeleteGroup(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addGroupRelationRequest struct {
	SupergroupIdx int64 `json:"supergroup_idx"`
	SubgroupIdx   int64 `json:"subgroup_idx"`
}

func (h *Handler) addGroupRelation(w http.ResponseWriter, r *http.Request) {
	var req addGroupRelationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	relation, err := h.permissions.AddGroupRelation(r.Context(), req.SupergroupIdx, req.SubgroupIdx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{
		"idx":            relation.Idx,
		"supergroup_idx": relation.SupergroupIdx,
		"subgroup_idx":   relation.SubgroupIdx,
	})
}

func (h *Handler) deleteGroupRelation(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid relation index")
		return
	}

	if err := h.permissions.DeleteGroupRelation(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req namedEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	permission, err := h.permissions.CreatePermission(r.Context(), &models.Permission{
		Name:        req.Name.model(),
		Description: req.Description.model(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"idx": permission.Idx})
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid permission index")
		return
	}

	if err := h.permissions.DeletePermission(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addRequirementRequest struct {
	GroupIdx      int64 `json:"group_idx"`
	PermissionIdx int64 `json:"permission_idx"`
}

func (h *Handler) addRequirement(w http.ResponseWriter, r *http.Request) {
	var req addRequirementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	requirement, err := h.permissions.AddRequirement(r.Context(), req.GroupIdx, req.PermissionIdx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{
		"idx":            requirement.Idx,
		"group_idx":      requirement.GroupIdx,
		"permission_idx": requirement.PermissionIdx,
	})
}

func (h *Handler) deleteRequirement(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid requirement index")
		return
	}

	if err := h.permissions.DeleteRequirement(r.Context(), idx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupReachableGroups(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	reachable, err := h.permissions.GroupReachableGroups(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": sortedIdxs(reachable)})
}

func sortedIdxs(set map[int64]struct{}) []int64 {
	idxs := make([]int64, 0, len(set))
	for idx := range set {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	return idxs
}

func (h *Handler) reachableGroups(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}

	reachable, err := h.permissions.UserReachableGroups(r.Context(), idx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": sortedIdxs(reachable)})
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	userIdx, err := pathIdx(r, "idx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user index")
		return
	}
	permissionIdx, err := pathIdx(r, "permissionIdx")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid permission index")
		return
	}

	granted, err := h.permissions.CheckUserPermission(r.Context(), userIdx, permissionIdx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}
