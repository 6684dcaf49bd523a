package statemachine

import (
	"errors"
	"testing"

	"simunet-portal/core/models"
)

// expectedEdges is the full adjacency list of the lifecycle. Anything not
// listed here must be rejected.
var expectedEdges = map[models.JobStatus][]models.JobStatus{
	models.JobStatusReceived:         {models.JobStatusApproved},
	models.JobStatusApproved:         {models.JobStatusAssigned},
	models.JobStatusAssigned:         {models.JobStatusInProgress, models.JobStatusSiteWorkComplete},
	models.JobStatusInProgress:       {models.JobStatusSiteWorkComplete},
	models.JobStatusSiteWorkComplete: {models.JobStatusDiaryPending},
	models.JobStatusDiaryPending:     {models.JobStatusDiarySent},
	models.JobStatusDiarySent:        {models.JobStatusDiaryPending, models.JobStatusDiaryApproved},
	models.JobStatusDiaryApproved:    {models.JobStatusPacketGenerated},
	models.JobStatusPacketGenerated:  {models.JobStatusSubmitted},
	models.JobStatusSubmitted:        {models.JobStatusArchived},
	models.JobStatusArchived:         {},
}

func TestTransitionTable(t *testing.T) {
	statuses := Statuses()
	if len(statuses) != 11 {
		t.Fatalf("expected 11 lifecycle stages, got %d", len(statuses))
	}

	for _, from := range statuses {
		allowed := map[models.JobStatus]bool{}
		for _, to := range expectedEdges[from] {
			allowed[to] = true
		}
		for _, to := range statuses {
			got := IsAllowed(from, to)
			if got != allowed[to] {
				t.Errorf("IsAllowed(%s, %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestArchivedIsTerminal(t *testing.T) {
	for _, to := range Statuses() {
		if IsAllowed(models.JobStatusArchived, to) {
			t.Errorf("ARCHIVED must have no outgoing edges, found one to %s", to)
		}
	}
}

func TestAssertTransition(t *testing.T) {
	if err := AssertTransition(models.JobStatusReceived, models.JobStatusApproved); err != nil {
		t.Fatalf("valid transition rejected: %v", err)
	}

	err := AssertTransition(models.JobStatusReceived, models.JobStatusSubmitted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	err = AssertTransition("NOT_A_STATUS", models.JobStatusApproved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status should fail with ErrInvalidTransition, got %v", err)
	}
}

func TestRejectionBackEdge(t *testing.T) {
	if !IsAllowed(models.JobStatusDiarySent, models.JobStatusDiaryPending) {
		t.Fatal("client rejection must return DIARY_SENT to DIARY_PENDING")
	}
}

func TestRankFollowsLifecycleOrder(t *testing.T) {
	statuses := Statuses()
	for i := 1; i < len(statuses); i++ {
		if Rank(statuses[i-1]) >= Rank(statuses[i]) {
			t.Errorf("Rank(%s) should come before Rank(%s)", statuses[i-1], statuses[i])
		}
	}
	if Rank("BOGUS") != len(statuses) {
		t.Errorf("unknown status should rank last, got %d", Rank("BOGUS"))
	}
}

func TestLabel(t *testing.T) {
	if got := Label(models.JobStatusSiteWorkComplete); got != "Site Work Complete" {
		t.Errorf("Label(SITE_WORK_COMPLETE) = %q", got)
	}
	if got := Label("SOME_OTHER"); got != "some other" {
		t.Errorf("fallback label = %q", got)
	}
}
