package auth

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter(3)

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("write %d should be allowed", i+1)
		}
	}
	if l.Allow("alice") {
		t.Error("write past the quota should be denied")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	now := time.Now()
	l := NewLimiter(2)
	l.now = func() time.Time { return now }

	if !l.Allow("alice") || !l.Allow("alice") {
		t.Fatal("first window writes should be allowed")
	}
	if l.Allow("alice") {
		t.Fatal("third write in the window should be denied")
	}

	// one second shy of the boundary still counts as the same window
	now = now.Add(time.Minute - time.Second)
	if l.Allow("alice") {
		t.Error("write just inside the window should still be denied")
	}

	now = now.Add(time.Second)
	if !l.Allow("alice") {
		t.Error("write in the new window should be allowed")
	}
}

func TestLimiterSubjectsIndependent(t *testing.T) {
	l := NewLimiter(1)

	if !l.Allow("alice") {
		t.Fatal("alice first write should be allowed")
	}
	if l.Allow("alice") {
		t.Fatal("alice second write should be denied")
	}
	if !l.Allow("bob") {
		t.Error("bob should have a separate quota")
	}
}

func TestLimiterDeniedWriteDoesNotConsume(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1)
	l.now = func() time.Time { return now }

	l.Allow("alice")
	for i := 0; i < 5; i++ {
		l.Allow("alice")
	}

	now = now.Add(time.Minute)
	if !l.Allow("alice") {
		t.Error("denied attempts must not extend the quota into the next window")
	}
}
