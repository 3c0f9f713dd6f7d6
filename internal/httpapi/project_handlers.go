package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Moadams/ProjectTracker/internal/project"
)

const dateLayout = "2006-01-02"

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Status      *string `json:"status"`
}

type projectsResponse struct {
	Projects []project.Project `json:"projects"`
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Projects.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeProjects(w, list)
}

func (a *API) handleOverdueProjects(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Projects.Overdue(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeProjects(w, list)
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := a.deps.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := project.CreateInput{Name: req.Name, Description: req.Description}
	if strings.TrimSpace(req.Deadline) != "" {
		d, err := parseDeadline(req.Deadline)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		in.Deadline = d
	}
	p, err := a.deps.Projects.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/projects/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := project.UpdateInput{Name: req.Name, Description: req.Description}
	if req.Deadline != nil {
		d, err := parseDeadline(*req.Deadline)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		in.Deadline = &d
	}
	if req.Status != nil {
		s := project.Status(strings.ToUpper(strings.TrimSpace(*req.Status)))
		in.Status = &s
	}
	p, err := a.deps.Projects.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDeadline accepts a calendar date or an RFC 3339 timestamp.
func parseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("deadline must be YYYY-MM-DD or RFC 3339, got %q", raw)
}

func writeProjects(w http.ResponseWriter, list []project.Project) {
	if list == nil {
		list = []project.Project{}
	}
	writeJSON(w, http.StatusOK, projectsResponse{Projects: list})
}
