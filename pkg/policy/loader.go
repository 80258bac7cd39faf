package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader handles loading policies from files and directories.
type Loader struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads policies from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var allPolicies []Policy

	for _, path := range paths {
		policies, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allPolicies = append(allPolicies, policies...)
	}

	l.logger.Info().
		Int("total", len(allPolicies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return allPolicies, nil
}

// loadFromPath loads policies from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		policy, err := l.loadFile(path)
		if err != nil {
			return nil, err
		}
		return []Policy{*policy}, nil
	}

	var policies []Policy
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPolicyFile(p) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		policy, err := l.loadFile(p)
		if err != nil {
			return err
		}
		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return policies, nil
}

// loadFile loads one policy file. Bare .rego files become enabled
// error-severity policies named after the file; .yaml files carry the
// full policy document with the Rego code inline.
func (l *Loader) loadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".rego":
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return &Policy{
			Name:      name,
			Rego:      string(data),
			Severity:  SeverityError,
			Enabled:   true,
			CreatedAt: time.Now(),
		}, nil

	case ".yaml", ".yml":
		policy := &Policy{
			Severity: SeverityError,
			Enabled:  true,
		}
		if err := yaml.Unmarshal(data, policy); err != nil {
			return nil, fmt.Errorf("failed to parse policy document %s: %w", path, err)
		}
		if policy.Name == "" {
			return nil, fmt.Errorf("policy document %s is missing a name", path)
		}
		if policy.Rego == "" {
			return nil, fmt.Errorf("policy document %s is missing rego code", path)
		}
		policy.CreatedAt = time.Now()
		return policy, nil

	default:
		return nil, fmt.Errorf("unsupported policy file type: %s", path)
	}
}

// isPolicyFile reports whether a path looks like a policy source.
func isPolicyFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rego", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Watch reloads policies when files under paths change, invoking onReload
// after each successful change notification. It blocks until the context
// is cancelled.
func (l *Loader) Watch(ctx context.Context, paths []string, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	defer func() {
		_ = watcher.Close()
	}()

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", path, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 && isPolicyFile(event.Name) {
				l.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Policy file changed")
				onReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("Policy watcher error")
		}
	}
}
