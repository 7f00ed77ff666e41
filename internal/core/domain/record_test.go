package domain

import "testing"

func TestDeriveRecordID(t *testing.T) {
	id1 := DeriveRecordID("mmlu-ko", 0, "What is the capital of France?")
	id2 := DeriveRecordID("mmlu-ko", 0, "What is the capital of France?")
	if id1 != id2 {
		t.Errorf("identical inputs should derive identical IDs: %s vs %s", id1, id2)
	}

	if DeriveRecordID("mmlu-ko", 1, "What is the capital of France?") == id1 {
		t.Error("different positions should derive different IDs")
	}
	if DeriveRecordID("hellaswag-ko", 0, "What is the capital of France?") == id1 {
		t.Error("different sources should derive different IDs")
	}
	if DeriveRecordID("mmlu-ko", 0, "What is the capital of Spain?") == id1 {
		t.Error("different texts should derive different IDs")
	}
}

func TestComputeContentHash(t *testing.T) {
	// Known SHA-256 vector
	got := ComputeContentHash("hello world")
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if ComputeContentHash("hello world") != ComputeContentHash("hello world") {
		t.Error("content hash should be deterministic")
	}
	if ComputeContentHash("hello world") == ComputeContentHash("hello  world") {
		t.Error("different texts should hash differently")
	}
	if len(ComputeContentHash("")) != 64 {
		t.Error("content hash should be 64 hex characters")
	}
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == "" || b == "" {
		t.Error("run IDs should not be empty")
	}
	if a == b {
		t.Error("run IDs should be unique")
	}
}
