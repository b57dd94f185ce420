package bot

import (
	"testing"
	"time"
)

func TestCooldownGuard_FirstRequestAllowed(t *testing.T) {
	guard := NewCooldownGuard(20 * time.Second)

	allowed, wait := guard.Allow(12345)
	if !allowed {
		t.Errorf("Expected first request to be allowed, told to wait %v", wait)
	}
}

func TestCooldownGuard_SecondRequestBlocked(t *testing.T) {
	guard := NewCooldownGuard(20 * time.Second)

	guard.Allow(12345)

	allowed, wait := guard.Allow(12345)
	if allowed {
		t.Error("Expected second immediate request to be blocked")
	}
	if wait <= 0 || wait > 20*time.Second {
		t.Errorf("Expected wait between 0 and 20s, got: %v", wait)
	}
}

func TestCooldownGuard_WaitDoesNotGrow(t *testing.T) {
	guard := NewCooldownGuard(time.Hour)

	guard.Allow(12345)

	_, firstWait := guard.Allow(12345)
	_, secondWait := guard.Allow(12345)

	// Rejected attempts must not push the wait further out
	if secondWait > firstWait+time.Second {
		t.Errorf("Wait grew across rejected attempts: %v then %v", firstWait, secondWait)
	}
}

func TestCooldownGuard_UsersIndependent(t *testing.T) {
	guard := NewCooldownGuard(20 * time.Second)

	guard.Allow(111)

	allowed, _ := guard.Allow(222)
	if !allowed {
		t.Error("Expected a different user to be unaffected by the first user's cooldown")
	}
}

func TestCooldownGuard_Disabled(t *testing.T) {
	guard := NewCooldownGuard(0)

	for i := 0; i < 5; i++ {
		if allowed, _ := guard.Allow(12345); !allowed {
			t.Fatalf("Expected request %d to be allowed with cooldown disabled", i+1)
		}
	}
}

func TestCooldownGuard_AllowsAfterCooldown(t *testing.T) {
	guard := NewCooldownGuard(50 * time.Millisecond)

	guard.Allow(12345)
	time.Sleep(60 * time.Millisecond)

	if allowed, wait := guard.Allow(12345); !allowed {
		t.Errorf("Expected request after cooldown to be allowed, told to wait %v", wait)
	}
}

func TestCooldownGuard_Prune(t *testing.T) {
	guard := NewCooldownGuard(20 * time.Second)

	guard.Allow(111)
	guard.Allow(222)

	removed := guard.Prune(0)
	if removed != 2 {
		t.Errorf("Expected 2 entries pruned, got: %d", removed)
	}

	// Pruned users start fresh
	if allowed, _ := guard.Allow(111); !allowed {
		t.Error("Expected pruned user to be allowed again")
	}
}
