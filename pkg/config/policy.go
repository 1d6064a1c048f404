package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/courseloop/authd/pkg/observability"
)

// policyFile is the on-disk YAML shape of the registration policy.
type policyFile struct {
	RequiredFields []string `yaml:"required_fields"`
}

// RegistrationPolicy holds the set of fields a registration request must
// carry. The set can be replaced at runtime by the file watcher; readers
// always see a complete snapshot, never a partial update.
type RegistrationPolicy struct {
	mu       sync.RWMutex
	required []string
	logger   *observability.Logger
}

// NewRegistrationPolicy creates a policy with an initial field set.
func NewRegistrationPolicy(required []string, logger *observability.Logger) *RegistrationPolicy {
	return &RegistrationPolicy{
		required: append([]string(nil), required...),
		logger:   logger,
	}
}

// Required returns the current required-field set.
func (p *RegistrationPolicy) Required() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.required...)
}

// LoadFile replaces the field set from a YAML file. A file that parses but
// names no fields is rejected; an empty policy would accept blank
// registrations.
func (p *RegistrationPolicy) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing policy file: %w", err)
	}
	if len(pf.RequiredFields) == 0 {
		return fmt.Errorf("policy file %s names no required fields", path)
	}

	p.mu.Lock()
	p.required = pf.RequiredFields
	p.mu.Unlock()

	p.logger.WithField("fields", pf.RequiredFields).Info("registration policy loaded")
	return nil
}

// Watch reloads the policy whenever the file changes, until the context is
// cancelled. Reload failures keep the previous policy in effect. The parent
// directory is watched rather than the file itself so that rename-based
// writes (editors, configmap updates) are still observed.
func (p *RegistrationPolicy) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching policy directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := p.LoadFile(path); err != nil {
					p.logger.WithError(err).Warn("registration policy reload failed, keeping previous policy")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.WithError(err).Warn("registration policy watcher error")
			}
		}
	}()

	return nil
}
