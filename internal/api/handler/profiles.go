package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mcoot/arena-auth/internal/api/apierr"
	"github.com/mcoot/arena-auth/internal/api/response"
	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/model"
)

var profileColumns = []string{"username", "full_name", "avatar_url", "rating"}

// ProfilesHandler serves the subset of the REST gateway the client uses:
// GET /rest/v1/profiles filtered by id=eq.<id> or username=ilike.<pattern>
type ProfilesHandler struct {
	profiles backend.Profiles
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(profiles backend.Profiles) *ProfilesHandler {
	return &ProfilesHandler{
		profiles: profiles,
	}
}

// List handles GET /rest/v1/profiles
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	columns, err := parseSelect(query.Get("select"))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var profile *model.Profile
	switch {
	case query.Has("id"):
		id, ok := strings.CutPrefix(query.Get("id"), "eq.")
		if !ok || id == "" {
			apierr.WriteError(w, apierr.NewInvalidRequestError("id filter must be eq.<id>"))
			return
		}
		profile, err = h.profiles.GetProfileByID(r.Context(), model.UserID(id))

	case query.Has("username"):
		pattern, ok := strings.CutPrefix(query.Get("username"), "ilike.")
		if !ok {
			apierr.WriteError(w, apierr.NewInvalidRequestError("username filter must be ilike.<pattern>"))
			return
		}
		username, literal := unescapeLike(pattern)
		if !literal || username == "" {
			apierr.WriteError(w, apierr.NewInvalidRequestError("username pattern must be a literal"))
			return
		}
		profile, err = h.profiles.FindProfileByUsername(r.Context(), username)

	default:
		apierr.WriteError(w, apierr.NewInvalidRequestError("an id or username filter is required"))
		return
	}

	if errors.Is(err, model.ErrProfileNotFound) {
		response.Rows[map[string]any](w, nil)
		return
	}
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.Rows(w, []map[string]any{project(profile, columns)})
}

// parseSelect validates a select list against the profile columns.
// An empty list or * selects everything.
func parseSelect(sel string) ([]string, error) {
	if sel == "" || sel == "*" {
		return profileColumns, nil
	}
	var columns []string
	for _, col := range strings.Split(sel, ",") {
		col = strings.TrimSpace(col)
		if !isProfileColumn(col) {
			return nil, apierr.NewInvalidRequestError("column profiles." + col + " does not exist")
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func isProfileColumn(col string) bool {
	for _, c := range profileColumns {
		if c == col {
			return true
		}
	}
	return false
}

func project(p *model.Profile, columns []string) map[string]any {
	row := make(map[string]any, len(columns))
	for _, col := range columns {
		switch col {
		case "username":
			row[col] = p.Username
		case "full_name":
			row[col] = p.FullName
		case "avatar_url":
			row[col] = p.AvatarURL
		case "rating":
			row[col] = p.Rating
		}
	}
	return row
}

// unescapeLike strips backslash escapes from a LIKE pattern. It reports false
// when the pattern holds an unescaped wildcard, which the exact lookup
// cannot honour.
func unescapeLike(pattern string) (string, bool) {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%' || r == '_' || r == '*':
			return "", false
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return "", false
	}
	return b.String(), true
}
