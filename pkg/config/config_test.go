package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type sample struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Level < 0 {
		return errors.New("level must be >= 0")
	}
	return nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "name: ${SAMPLE_NAME}\nlevel: 2\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "from-env" || s.Level != 2 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_RunsValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "level: -1\n")

	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithDefaults_FallsBack(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.yaml")
	writeFile(t, def, "name: default\n")

	var s sample
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), def, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q", s.Name)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "level: 1\n")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func() *sample { return &sample{} }, logger, func(s *sample) {
			mu.Lock()
			got = append(got, s.Level)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "level: -5\n")
	time.Sleep(400 * time.Millisecond)
	writeFile(t, path, "level: 7\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 || got[len(got)-1] != 7 {
		t.Errorf("reloads = %v, want last 7 and invalid file skipped", got)
	}
	for _, l := range got {
		if l < 0 {
			t.Errorf("invalid config was delivered: %v", got)
		}
	}
}
