package controllers

import (
	"errors"
	"testing"

	"classboard_go/scheduling"
)

func TestSettleCheckDegradeContract(t *testing.T) {
	clear := scheduling.ConflictResult{HasConflicts: false}

	result, verified, err := settleCheck(clear, nil)
	if err != nil || !verified {
		t.Fatalf("clean outcome must be verified: verified=%v err=%v", verified, err)
	}
	if result.HasConflicts {
		t.Fatalf("result altered: %+v", result)
	}

	vErr := &scheduling.ValidationError{Field: "window", Reason: "end must be after start"}
	if _, _, err := settleCheck(scheduling.ConflictResult{}, vErr); !scheduling.IsValidation(err) {
		t.Fatalf("validation errors must surface, got %v", err)
	}

	// Backend failures never block the caller; they come back unverified.
	_, verified, err = settleCheck(scheduling.ConflictResult{}, errors.New("db down"))
	if err != nil {
		t.Fatalf("backend failure must not surface as an error: %v", err)
	}
	if verified {
		t.Fatal("backend failure must come back unverified")
	}
}
