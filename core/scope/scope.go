// Package scope answers whether a specific actor may touch a specific job.
// It is the second gate after rbac: role permission says a role may ever
// perform an action, scope says this actor may perform it on this job.
package scope

import (
	"errors"
	"fmt"

	"simunet-portal/core/models"
)

// ErrScopeDenied is returned when the actor's role permits the action in
// general but not on this job.
var ErrScopeDenied = errors.New("job scope denied")

// CanAccess reports whether the actor may operate on the job. Admins see
// everything; techs need to be on the crew or hold an explicit grant;
// clients need the site in scope or an explicit grant.
func CanAccess(actor *models.UserProfile, job *models.Job) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTech:
		return job.AssignedTo(actor.ID) || actor.Scope.HasExplicitJob(job.ID)
	default:
		return actor.Scope.HasSite(job.SiteName) || actor.Scope.HasExplicitJob(job.ID)
	}
}

// AssertScope fails with ErrScopeDenied when the actor is out of scope.
func AssertScope(actor *models.UserProfile, job *models.Job) error {
	if !CanAccess(actor, job) {
		return fmt.Errorf("%w: user %s on job %s", ErrScopeDenied, actor.ID, job.ID)
	}
	return nil
}
