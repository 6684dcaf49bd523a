package scope

import (
	"errors"
	"testing"

	"simunet-portal/core/models"
)

func TestCanAccess(t *testing.T) {
	job := &models.Job{
		ID:              "JOB-2026-0001",
		SiteName:        "Hilltop Mast 12",
		AssignedTechIDs: []string{"tech-1"},
	}

	tests := []struct {
		name  string
		actor *models.UserProfile
		want  bool
	}{
		{
			name:  "admin always in scope",
			actor: &models.UserProfile{ID: "admin-1", Role: models.RoleAdmin},
			want:  true,
		},
		{
			name:  "assigned tech",
			actor: &models.UserProfile{ID: "tech-1", Role: models.RoleTech},
			want:  true,
		},
		{
			name:  "unassigned tech",
			actor: &models.UserProfile{ID: "tech-2", Role: models.RoleTech},
			want:  false,
		},
		{
			name: "unassigned tech with explicit grant",
			actor: &models.UserProfile{
				ID:    "tech-2",
				Role:  models.RoleTech,
				Scope: models.UserScope{ExplicitJobIDs: []string{"JOB-2026-0001"}},
			},
			want: true,
		},
		{
			name: "tech site scope alone is not enough",
			actor: &models.UserProfile{
				ID:    "tech-3",
				Role:  models.RoleTech,
				Scope: models.UserScope{Sites: []string{"Hilltop Mast 12"}},
			},
			want: false,
		},
		{
			name: "client with matching site",
			actor: &models.UserProfile{
				ID:    "client-1",
				Role:  models.RoleClient,
				Scope: models.UserScope{Sites: []string{"Hilltop Mast 12"}},
			},
			want: true,
		},
		{
			name: "client with wildcard site",
			actor: &models.UserProfile{
				ID:    "client-2",
				Role:  models.RoleClient,
				Scope: models.UserScope{Sites: []string{"*"}},
			},
			want: true,
		},
		{
			name: "client with other site only",
			actor: &models.UserProfile{
				ID:    "client-3",
				Role:  models.RoleClient,
				Scope: models.UserScope{Sites: []string{"River Exchange"}},
			},
			want: false,
		},
		{
			name: "client with explicit job grant",
			actor: &models.UserProfile{
				ID:    "client-4",
				Role:  models.RoleClient,
				Scope: models.UserScope{ExplicitJobIDs: []string{"JOB-2026-0001"}},
			},
			want: true,
		},
		{
			name:  "client with no scope",
			actor: &models.UserProfile{ID: "client-5", Role: models.RoleClient},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(tt.actor, job); got != tt.want {
				t.Errorf("CanAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssertScope(t *testing.T) {
	job := &models.Job{ID: "JOB-2026-0002", SiteName: "River Exchange"}
	outsider := &models.UserProfile{ID: "client-9", Role: models.RoleClient}

	err := AssertScope(outsider, job)
	if !errors.Is(err, ErrScopeDenied) {
		t.Fatalf("expected ErrScopeDenied, got %v", err)
	}
	if err := AssertScope(&models.UserProfile{ID: "a", Role: models.RoleAdmin}, job); err != nil {
		t.Fatalf("admin should pass scope: %v", err)
	}
}
