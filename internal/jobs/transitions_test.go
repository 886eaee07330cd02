package jobs_test

import (
	"errors"
	"testing"

	"veriscope/internal/jobs"
	"veriscope/internal/services"
)

func TestNextStageWalksFullChain(t *testing.T) {
	order := jobs.PipelineOrder()
	if order[0] != jobs.StatusPending || order[len(order)-1] != jobs.StatusDone {
		t.Fatalf("unexpected chain endpoints: %s .. %s", order[0], order[len(order)-1])
	}

	for i := 0; i+1 < len(order); i++ {
		next, ok := jobs.NextStage(order[i])
		if !ok {
			t.Fatalf("NextStage(%s) reported no successor", order[i])
		}
		if next != order[i+1] {
			t.Fatalf("NextStage(%s) = %s, want %s", order[i], next, order[i+1])
		}
	}

	if _, ok := jobs.NextStage(jobs.StatusDone); ok {
		t.Fatal("expected done to have no successor")
	}
	if _, ok := jobs.NextStage(jobs.StatusFailed); ok {
		t.Fatal("expected failed to have no successor")
	}
}

func TestCanTransitionOnlyNextOrFailed(t *testing.T) {
	cases := []struct {
		from jobs.Status
		to   jobs.Status
		want bool
	}{
		{jobs.StatusPending, jobs.StatusValidating, true},
		{jobs.StatusValidating, jobs.StatusExtracting, true},
		{jobs.StatusReport, jobs.StatusDone, true},
		{jobs.StatusPending, jobs.StatusFusion, false},
		{jobs.StatusExtracting, jobs.StatusValidating, false},
		{jobs.StatusPending, jobs.StatusFailed, true},
		{jobs.StatusReport, jobs.StatusFailed, true},
		{jobs.StatusDone, jobs.StatusFailed, false},
		{jobs.StatusFailed, jobs.StatusPending, false},
		{jobs.StatusDone, jobs.StatusPending, false},
	}
	for _, tc := range cases {
		if got := jobs.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateTransitionReturnsStateError(t *testing.T) {
	err := jobs.ValidateTransition(jobs.StatusPending, jobs.StatusFusion)
	if err == nil {
		t.Fatal("expected error for stage skip")
	}
	if !errors.Is(err, services.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if err := jobs.ValidateTransition(jobs.StatusPending, jobs.StatusValidating); err != nil {
		t.Fatalf("expected legal transition, got %v", err)
	}
}

func TestActiveStatusesExcludeTerminals(t *testing.T) {
	for _, status := range jobs.ActiveStatuses() {
		if jobs.IsTerminal(status) {
			t.Fatalf("active statuses include terminal %s", status)
		}
	}
	if len(jobs.ActiveStatuses()) != len(jobs.PipelineOrder())-1 {
		t.Fatalf("expected every non-terminal pipeline status to be active")
	}
}
