// Package claims turns a verified claim set into a typed user view. Each
// logical field resolves through an ordered list of synonym claim names so
// the same extractor works across identity providers that disagree on
// naming (sub vs oid, email vs preferred_username, and so on).
package claims

import (
	"fmt"
	"strings"

	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
	"github.com/jrsteele09/go-sso-client/internal/utils"
)

// ErrPermissionDenied means the principal is valid but lacks a required role.
var ErrPermissionDenied = autherrors.ErrPermissionDenied

// View is the normalized projection of a verified claim set.
type View struct {
	SubjectID   string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	GivenName   string            `json:"givenName"`
	Surname     string            `json:"surname"`
	JobTitle    string            `json:"jobTitle,omitempty"`
	TenantID    string            `json:"tenantId"`
	Roles       []string          `json:"roles"`
	Groups      []string          `json:"groups"`
	Additional  map[string]string `json:"additionalClaims,omitempty"`
}

// Synonym claim names per logical field, in resolution order: the first
// claim present wins.
var (
	subjectClaims   = []string{"sub", "nameid", "oid"}
	emailClaims     = []string{"email", "preferred_username", "upn"}
	nameClaims      = []string{"name", "unique_name"}
	givenNameClaims = []string{"given_name", "givenname"}
	surnameClaims   = []string{"family_name", "surname"}
	jobTitleClaims  = []string{"jobTitle"}
	tenantClaims    = []string{"tid"}
	roleClaims      = []string{"roles", "role"}
	groupClaims     = []string{"groups"}
)

// FromMap builds a View from a verified claim set. Roles and groups collect
// every value of their claim types; everything not consumed by a known
// logical field lands in Additional, multiple values joined per claim type.
func FromMap(claimSet map[string]any) View {
	view := View{
		SubjectID:   firstString(claimSet, subjectClaims),
		Email:       firstString(claimSet, emailClaims),
		DisplayName: firstString(claimSet, nameClaims),
		GivenName:   firstString(claimSet, givenNameClaims),
		Surname:     firstString(claimSet, surnameClaims),
		JobTitle:    firstString(claimSet, jobTitleClaims),
		TenantID:    firstString(claimSet, tenantClaims),
		Roles:       collectStrings(claimSet, roleClaims),
		Groups:      collectStrings(claimSet, groupClaims),
	}

	consumed := make(map[string]struct{})
	for _, names := range [][]string{
		subjectClaims, emailClaims, nameClaims, givenNameClaims,
		surnameClaims, jobTitleClaims, tenantClaims, roleClaims, groupClaims,
	} {
		for _, name := range names {
			consumed[name] = struct{}{}
		}
	}

	view.Additional = additionalClaims(claimSet, consumed)
	return view
}

// HasPermissions reports whether the view satisfies the requested
// permission set: an empty request always passes, otherwise the view's
// roles must intersect it (case-insensitive). Pure function of the view.
func HasPermissions(view View, permissions []string) bool {
	if len(permissions) == 0 {
		return true
	}
	roles := make(map[string]struct{}, len(view.Roles))
	for _, r := range view.Roles {
		roles[strings.ToLower(r)] = struct{}{}
	}
	for _, p := range permissions {
		if _, ok := roles[strings.ToLower(p)]; ok {
			return true
		}
	}
	return false
}

func firstString(claimSet map[string]any, names []string) string {
	for _, name := range names {
		if s, ok := claimSet[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// collectStrings gathers all values across every synonym claim name:
// multi-valued fields keep every entry, not just the first match.
func collectStrings(claimSet map[string]any, names []string) []string {
	var values []string
	for _, name := range names {
		values = append(values, utils.ClaimStrings(claimSet[name])...)
	}
	return values
}

func additionalClaims(claimSet map[string]any, consumed map[string]struct{}) map[string]string {
	additional := make(map[string]string)
	for name, value := range claimSet {
		if _, ok := consumed[name]; ok {
			continue
		}
		additional[name] = joinClaimValue(value)
	}
	if len(additional) == 0 {
		return nil
	}
	return additional
}

func joinClaimValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, joinClaimValue(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
