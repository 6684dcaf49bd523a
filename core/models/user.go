package models

// Role represents a portal role
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTech   Role = "TECH"
	RoleClient Role = "CLIENT"
)

// UserScope limits which jobs an actor may touch beyond role permissions.
// Sites may contain the wildcard "*"; ExplicitJobIDs grant individual jobs
// regardless of site.
type UserScope struct {
	Sites          []string `json:"sites" yaml:"sites"`
	ExplicitJobIDs []string `json:"explicitJobIds" yaml:"explicit_job_ids"`
}

// UserProfile is a resolved actor identity. Resolution itself (session,
// cookie, header) happens at the boundary; the core only consumes profiles.
type UserProfile struct {
	ID    string    `json:"id" yaml:"id"`
	Name  string    `json:"name" yaml:"name"`
	Role  Role      `json:"role" yaml:"role"`
	Scope UserScope `json:"scope" yaml:"scope"`
}

// HasSite reports whether the actor's site scope covers the given site.
func (s UserScope) HasSite(siteName string) bool {
	for _, site := range s.Sites {
		if site == "*" || site == siteName {
			return true
		}
	}
	return false
}

// HasExplicitJob reports whether the actor was granted the job directly.
func (s UserScope) HasExplicitJob(jobID string) bool {
	for _, id := range s.ExplicitJobIDs {
		if id == jobID {
			return true
		}
	}
	return false
}
