package workflow

import (
	"errors"

	"simunet-portal/core/rbac"
	"simunet-portal/core/repository"
	"simunet-portal/core/scope"
	"simunet-portal/core/statemachine"
)

// ErrPreconditionFailed is returned when a domain gate other than the
// transition table blocks an operation: sending a diary without a PDF,
// rejecting without a comment, generating a packet outside DIARY_APPROVED.
var ErrPreconditionFailed = errors.New("precondition failed")

// The full failure taxonomy, re-exported so boundary code can classify
// every engine error from one package.
var (
	ErrNotFound          = repository.ErrNotFound
	ErrConflict          = repository.ErrConflict
	ErrInvalidTransition = statemachine.ErrInvalidTransition
	ErrPermissionDenied  = rbac.ErrPermissionDenied
	ErrScopeDenied       = scope.ErrScopeDenied
)
