package config_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/config"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if got := h.Get().Quota.DailyLimit; got != 5000 {
		t.Errorf("DailyLimit = %d, want 5000", got)
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("quota:\n  daily_limit: 7500\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := h.Get().Quota.DailyLimit; got != 7500 {
		t.Errorf("DailyLimit after reload = %d, want 7500", got)
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var received *config.Config
	h.OnChange(func(c *config.Config) {
		mu.Lock()
		received = c
		mu.Unlock()
	})

	if err := os.WriteFile(path, []byte("quota:\n  daily_limit: 6000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil {
		t.Fatal("OnChange callback not invoked")
	}
	if received.Quota.DailyLimit != 6000 {
		t.Errorf("callback DailyLimit = %d, want 6000", received.Quota.DailyLimit)
	}
}

func TestHolder_ReloadInvalidKeepsOldConfig(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("quota:\n  daily_limit: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err == nil {
		t.Error("Reload accepted an invalid config")
	}
	if got := h.Get().Quota.DailyLimit; got != 5000 {
		t.Errorf("DailyLimit = %d, want old value 5000 kept", got)
	}
}

func TestHolder_WatchTriggersReload(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	reloaded := make(chan struct{}, 1)
	h.OnChange(func(*config.Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err := h.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("quota:\n  daily_limit: 9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("file change never triggered a reload")
	}
	if got := h.Get().Quota.DailyLimit; got != 9000 {
		t.Errorf("DailyLimit after watch reload = %d, want 9000", got)
	}
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5000
`)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("Get returned nil")
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()
}
