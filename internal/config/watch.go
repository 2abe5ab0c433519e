package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the configuration whenever the file is written or
// recreated. Invalid files are logged and the previous values kept.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so atomic renames are seen.
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(m.configPath), err)
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop(watcher)
	return nil
}

func (m *Manager) watchLoop(watcher *fsnotify.Watcher) {
	defer m.wg.Done()

	name := filepath.Base(m.configPath)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-m.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: Watch error: %v", err)
		}
	}
}

func (m *Manager) reload() {
	select {
	case <-m.done:
		return
	default:
	}
	if err := m.Load(); err != nil {
		log.Printf("Config: Reload failed, keeping previous configuration: %v", err)
		return
	}
	log.Printf("Config: Reloaded %s", m.configPath)
}

// Close stops watching. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	watcher := m.watcher
	select {
	case <-m.done:
		m.mu.Unlock()
		return nil
	default:
		close(m.done)
	}
	m.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	m.wg.Wait()
	return err
}
