// Package rbac holds the static role to permission table. Permissions are
// role-level only; per-job access is the scope package's concern.
package rbac

import (
	"errors"
	"fmt"

	"simunet-portal/core/models"
)

// ErrPermissionDenied is returned when an actor's role lacks a permission.
var ErrPermissionDenied = errors.New("permission denied")

// Permission names one gated portal action
type Permission string

const (
	PermIntakeRead      Permission = "teams:intake:read"
	PermIntakeCreateJob Permission = "teams:intake:create_job"
	PermJobRead         Permission = "job:read"
	PermJobApprove      Permission = "job:approve"
	PermJobAssign       Permission = "job:assign"
	PermJobStatusUpdate Permission = "job:status:update"
	PermDiaryDraft      Permission = "diary:draft"
	PermDiarySend       Permission = "diary:send"
	PermDiaryApprove    Permission = "diary:approve"
	PermPacketGenerate  Permission = "packet:generate"
	PermArchiveRead     Permission = "archive:read"
	PermEvidenceUpload  Permission = "evidence:upload"
	PermPacketDownload  Permission = "packet:download"
)

// Admins hold everything except diary approval (a client act) and evidence
// upload (a field act). Techs work jobs; clients review and download.
var rolePermissions = map[models.Role]map[Permission]struct{}{
	models.RoleAdmin: {
		PermIntakeRead:      {},
		PermIntakeCreateJob: {},
		PermJobRead:         {},
		PermJobApprove:      {},
		PermJobAssign:       {},
		PermJobStatusUpdate: {},
		PermDiaryDraft:      {},
		PermDiarySend:       {},
		PermPacketGenerate:  {},
		PermArchiveRead:     {},
		PermPacketDownload:  {},
	},
	models.RoleTech: {
		PermJobRead:         {},
		PermJobStatusUpdate: {},
		PermEvidenceUpload:  {},
	},
	models.RoleClient: {
		PermJobRead:        {},
		PermDiaryApprove:   {},
		PermPacketDownload: {},
	},
}

// HasPermission reports whether the role grants the permission.
func HasPermission(role models.Role, permission Permission) bool {
	_, ok := rolePermissions[role][permission]
	return ok
}

// AssertPermission fails with ErrPermissionDenied when the actor's role
// does not grant the permission.
func AssertPermission(actor *models.UserProfile, permission Permission) error {
	if !HasPermission(actor.Role, permission) {
		return fmt.Errorf("%w: user %s missing %s", ErrPermissionDenied, actor.ID, permission)
	}
	return nil
}
