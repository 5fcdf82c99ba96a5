package domain

import (
	"testing"
	"time"
)

func TestIdempotencyRecord_State(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	rec := IdempotencyRecord{Status: IdempotencyStatusProcessing, TTLAt: now.Add(time.Second)}
	if rec.Expired(now) {
		t.Fatal("record must be alive before ttl")
	}
	if !rec.Expired(now.Add(time.Second)) {
		t.Fatal("record must expire exactly at ttl")
	}
	if rec.Completed() {
		t.Fatal("processing record has no stored response")
	}

	for _, st := range []IdempotencyStatus{IdempotencyStatusDone, IdempotencyStatusFailed} {
		rec.Status = st
		if !rec.Completed() || !st.Valid() {
			t.Fatalf("%s must be a valid completed status", st)
		}
	}
	if IdempotencyStatus("broken").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}
