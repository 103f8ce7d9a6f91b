package rotation

import (
	"sync"
	"testing"
	"time"

	"github.com/charlaomota/V360/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(clock *fakeClock, keys map[string][]string) *Manager {
	return NewManager(keys, Config{}, nil).WithClock(clock.Now)
}

func TestManager_Select_Unconfigured(t *testing.T) {
	m := newTestManager(newFakeClock(), map[string][]string{
		"tavily": {"tvly-key-1"},
	})

	if cred, ok := m.Select("exa"); ok || cred != nil {
		t.Errorf("Select(exa) = (%v, %v), want (nil, false) for unconfigured provider", cred, ok)
	}

	status := m.Status("exa")
	if status.State != domain.PoolUnconfigured {
		t.Errorf("Status(exa).State = %q, want %q", status.State, domain.PoolUnconfigured)
	}
	if status.TotalKeys != 0 || status.AvailableKeys != 0 {
		t.Errorf("Status(exa) = %+v, want zero counts", status)
	}
}

func TestManager_Select_RoundRobin(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"tavily": {"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc"},
	})

	want := []string{"key-aaaaaaaaaa", "key-bbbbbbbbbb", "key-cccccccccc"}
	for i, wantKey := range want {
		cred, ok := m.Select("tavily")
		if !ok {
			t.Fatalf("Select() #%d returned no credential", i+1)
		}
		if cred.Key != wantKey {
			t.Errorf("Select() #%d = %q, want %q", i+1, cred.Key, wantKey)
		}
		m.RecordSuccess("tavily", cred)
		clock.Advance(time.Second)
	}
}

func TestManager_Select_SkipsCoolingDown(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"exa": {"exa-key-one", "exa-key-two"},
	})

	first, _ := m.Select("exa")
	m.RecordFailure("exa", first, domain.FailureQuotaExceeded)

	// пока есть здоровый ключ - провинившийся не выбирается
	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		cred, ok := m.Select("exa")
		if !ok {
			t.Fatal("Select() returned no credential")
		}
		if cred.Key == first.Key {
			t.Fatalf("Select() returned cooling-down credential %q after %d minutes", cred.Tag(), i+1)
		}
	}

	// спустя час quota cooldown истек
	clock.Advance(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		cred, _ := m.Select("exa")
		seen[cred.Key] = true
		clock.Advance(time.Second)
	}
	if !seen[first.Key] {
		t.Error("credential not selectable again after quota cooldown expired")
	}
}

func TestManager_Select_AllUnhealthyFallsBackToLRU(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"serper": {"srp-key-one", "srp-key-two", "srp-key-three"},
	})

	// загоняем все ключи за порог нездоровья
	var lastSelected *Credential
	for i := 0; i < 3; i++ {
		cred, ok := m.Select("serper")
		if !ok {
			t.Fatal("Select() returned no credential")
		}
		for j := 0; j <= DefaultUnhealthyThreshold; j++ {
			m.RecordFailure("serper", cred, domain.FailureGeneric)
		}
		lastSelected = cred
		clock.Advance(time.Second)
	}

	status := m.Status("serper")
	if status.State != domain.PoolDegraded {
		t.Errorf("Status().State = %q, want %q", status.State, domain.PoolDegraded)
	}
	if status.AvailableKeys != 0 {
		t.Errorf("Status().AvailableKeys = %d, want 0", status.AvailableKeys)
	}

	// пул полностью нездоров, но Select все равно отдает ключ - самый давний
	cred, ok := m.Select("serper")
	if !ok || cred == nil {
		t.Fatal("Select() must fall back to LRU credential, got none")
	}
	if cred.Key == lastSelected.Key {
		t.Errorf("Select() = %q (most recently used), want least recently used", cred.Tag())
	}
}

func TestManager_RecordSuccess_ResetsErrors(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"tavily": {"tvly-key-aaaa"},
	})

	cred, _ := m.Select("tavily")
	m.RecordFailure("tavily", cred, domain.FailureGeneric)
	m.RecordFailure("tavily", cred, domain.FailureGeneric)

	m.RecordSuccess("tavily", cred)
	m.RecordSuccess("tavily", cred) // идемпотентен

	if cred.consecutiveErrors != 0 {
		t.Errorf("consecutiveErrors = %d after RecordSuccess, want 0", cred.consecutiveErrors)
	}
}

func TestManager_CooldownOverwrittenNotCumulative(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"tavily": {"tvly-key-aaaa"},
	})

	cred, _ := m.Select("tavily")
	m.RecordFailure("tavily", cred, domain.FailureQuotaExceeded)
	m.RecordFailure("tavily", cred, domain.FailureGeneric)

	if cred.cooldown != DefaultGenericCooldown {
		t.Errorf("cooldown = %v, want %v (latest classification wins)", cred.cooldown, DefaultGenericCooldown)
	}
}

func TestManager_Status_Healthy(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"exa": {"exa-key-one", "exa-key-two"},
	})

	status := m.Status("exa")
	if status.State != domain.PoolHealthy {
		t.Errorf("Status().State = %q, want %q", status.State, domain.PoolHealthy)
	}
	if status.TotalKeys != 2 || status.AvailableKeys != 2 {
		t.Errorf("Status() = %+v, want 2 total / 2 available", status)
	}
}

func TestManager_Reset(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"tavily": {"tvly-key-aaaa"},
		"exa":    {"exa-key-one"},
	})

	tc, _ := m.Select("tavily")
	ec, _ := m.Select("exa")
	for i := 0; i <= DefaultUnhealthyThreshold; i++ {
		m.RecordFailure("tavily", tc, domain.FailureQuotaExceeded)
		m.RecordFailure("exa", ec, domain.FailureQuotaExceeded)
	}

	m.Reset("tavily")
	if st := m.Status("tavily"); st.State != domain.PoolHealthy {
		t.Errorf("Status(tavily).State = %q after Reset, want healthy", st.State)
	}
	if st := m.Status("exa"); st.State != domain.PoolDegraded {
		t.Errorf("Status(exa).State = %q, want degraded (not reset)", st.State)
	}

	m.ResetAll()
	if st := m.Status("exa"); st.State != domain.PoolHealthy {
		t.Errorf("Status(exa).State = %q after ResetAll, want healthy", st.State)
	}
}

func TestManager_EmptyKeysSkipped(t *testing.T) {
	m := newTestManager(newFakeClock(), map[string][]string{
		"tavily": {"", "", ""},
	})

	if _, ok := m.Select("tavily"); ok {
		t.Error("Select() returned credential from pool of empty keys")
	}
	if st := m.Status("tavily"); st.State != domain.PoolUnconfigured {
		t.Errorf("Status().State = %q, want unconfigured", st.State)
	}
}

func TestManager_Concurrent(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, map[string][]string{
		"tavily": {"key-aaaaaaaaaa", "key-bbbbbbbbbb"},
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cred, ok := m.Select("tavily")
				if !ok {
					continue
				}
				if n%2 == 0 {
					m.RecordSuccess("tavily", cred)
				} else {
					m.RecordFailure("tavily", cred, domain.FailureGeneric)
				}
			}
		}(i)
	}
	wg.Wait()

	// после гонки пул должен оставаться согласованным
	st := m.Status("tavily")
	if st.TotalKeys != 2 {
		t.Errorf("TotalKeys = %d, want 2", st.TotalKeys)
	}
}
