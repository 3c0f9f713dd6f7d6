package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Moadams/ProjectTracker/internal/audit"
)

type auditLogsResponse struct {
	Records []audit.Record `json:"records"`
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		EntityType: audit.EntityType(strings.ToUpper(strings.TrimSpace(q.Get("entityType")))),
		Actor:      strings.TrimSpace(q.Get("actor")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	records, err := a.deps.AuditLog.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, auditLogsResponse{Records: records})
}
