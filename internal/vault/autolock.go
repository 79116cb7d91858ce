package vault

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/dshills/vaultkeep/internal/storage"
)

// defaultAutoLockPoll is how often the idle monitor checks the clock.
const defaultAutoLockPoll = 10 * time.Second

// RegisterActivity resets the idle clock. Embedding surfaces call this
// on every user interaction.
func (m *Manager) RegisterActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

// RunAutoLock monitors idle time and forces Unlocked → Locked once the
// configured timeout elapses without activity. It blocks until ctx is
// cancelled, so run it in its own goroutine. Settings are re-read on
// every tick; changing them takes effect without a restart. The lock
// transition only clears the cached key and flips state, never touching
// the store.
func (m *Manager) RunAutoLock(ctx context.Context) {
	ticker := time.NewTicker(m.autoLockPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAutoLock(ctx)
		}
	}
}

func (m *Manager) checkAutoLock(ctx context.Context) {
	if m.State() != StateUnlocked {
		return
	}

	enabled, err := m.store.GetSetting(ctx, storage.SettingAutoLockEnabled, "1")
	if err != nil {
		log.Printf("auto-lock: failed to read settings: %v", err)
		return
	}
	if enabled != "1" {
		return
	}

	minutesStr, err := m.store.GetSetting(ctx, storage.SettingAutoLockMinutes, "5")
	if err != nil {
		log.Printf("auto-lock: failed to read settings: %v", err)
		return
	}
	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes <= 0 {
		minutes = 5
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnlocked {
		return
	}
	if time.Since(m.lastActivity) >= time.Duration(minutes)*time.Minute {
		log.Printf("auto-lock: idle timeout reached, locking vault")
		m.lockLocked()
	}
}
