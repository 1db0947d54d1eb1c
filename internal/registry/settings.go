package registry

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"voxellands.ai/internal/land"
)

// PlayerSettings are per-player display preferences.
type PlayerSettings struct {
	ShowEnterTitle bool   `json:"show_enter_title"`
	ShowBottomTip  bool   `json:"show_bottom_tip"`
	Locale         string `json:"locale,omitempty"`
}

func DefaultPlayerSettings() PlayerSettings {
	return PlayerSettings{ShowEnterTitle: true, ShowBottomTip: true}
}

func (r *Registry) IsOperator(p uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[p]
	return ok
}

// Operators returns the operator list sorted by identity.
func (r *Registry) Operators() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operatorListLocked()
}

func (r *Registry) AddOperator(p uuid.UUID) error {
	if p == uuid.Nil {
		return fmt.Errorf("registry: nil operator identity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operators[p]; ok {
		return nil
	}
	r.operators[p] = struct{}{}
	if err := r.persistOperatorsLocked(); err != nil {
		delete(r.operators, p)
		return err
	}
	return nil
}

func (r *Registry) RemoveOperator(p uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operators[p]; !ok {
		return nil
	}
	delete(r.operators, p)
	if err := r.persistOperatorsLocked(); err != nil {
		r.operators[p] = struct{}{}
		return err
	}
	return nil
}

func (r *Registry) operatorListLocked() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.operators))
	for p := range r.operators {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (r *Registry) persistOperatorsLocked() error {
	ops := r.operatorListLocked()
	ss := make([]string, len(ops))
	for i, p := range ops {
		ss[i] = p.String()
	}
	return r.putJSONLocked(keyOperators, ss)
}

// PlayerSettings returns p's settings, or the defaults when none are stored.
func (r *Registry) PlayerSettings(p uuid.UUID) PlayerSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.settings[p]; ok {
		return s
	}
	return DefaultPlayerSettings()
}

func (r *Registry) SetPlayerSettings(p uuid.UUID, s PlayerSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, had := r.settings[p]
	r.settings[p] = s
	if err := r.persistSettingsLocked(); err != nil {
		if had {
			r.settings[p] = prev
		} else {
			delete(r.settings, p)
		}
		return err
	}
	return nil
}

func (r *Registry) persistSettingsLocked() error {
	m := make(map[string]PlayerSettings, len(r.settings))
	for p, s := range r.settings {
		m[p.String()] = s
	}
	return r.putJSONLocked(keyPlayerSettings, m)
}

// TemplatePermissions is the table copied into new claims created without one.
func (r *Registry) TemplatePermissions() land.PermissionTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.template.Clone()
}

func (r *Registry) SetTemplatePermissions(t land.PermissionTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.template
	r.template = t.Clone()
	if err := r.putJSONLocked(keyTemplate, r.template); err != nil {
		r.template = prev
		return err
	}
	return nil
}

func (r *Registry) putJSONLocked(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.store.Put(key, string(b)); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreFailure, key, err)
	}
	return nil
}
