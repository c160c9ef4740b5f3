// Package configstore implements C5: the per-node persisted overrides
// (disabled LLM models, hidden RENDER workflows) backing agent_config.json.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/DimaJoyti/node-agent/pkg/errors"
)

// FileName is the persisted config's name, colocated with the executable
// per spec.md §6 and confirmed by the original agent's CONFIG_FILE.
const FileName = "agent_config.json"

// persisted is the on-disk JSON shape.
type persisted struct {
	LLMDisabledModels       []string `json:"llm_disabled_models"`
	RenderDisabledWorkflows []string `json:"render_disabled_workflows"`
}

// Store is the in-memory mirror of agent_config.json, guarded by a mutex
// and written back atomically (temp file + rename) on every mutation.
type Store struct {
	mu   sync.Mutex
	path string

	llmDisabled    map[string]struct{}
	renderDisabled map[string]struct{}
}

// Load reads path if present; a missing file is not an error — the store
// starts with empty override sets, matching the original agent's
// load_config() tolerance.
func Load(dir string) (*Store, error) {
	path := filepath.Join(dir, FileName)
	s := &Store{
		path:           path,
		llmDisabled:    map[string]struct{}{},
		renderDisabled: map[string]struct{}{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, apperrors.WrapTyped(apperrors.ConfigWriteFailed, err, "read agent_config.json")
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.WrapTyped(apperrors.ConfigWriteFailed, err, "parse agent_config.json")
	}
	for _, m := range p.LLMDisabledModels {
		s.llmDisabled[m] = struct{}{}
	}
	for _, w := range p.RenderDisabledWorkflows {
		s.renderDisabled[w] = struct{}{}
	}
	return s, nil
}

// FilterLLMModels returns observed \ disabled, preserving the input order.
func (s *Store) FilterLLMModels(observed []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(observed))
	for _, m := range observed {
		if _, hidden := s.llmDisabled[m]; !hidden {
			out = append(out, m)
		}
	}
	return out
}

// IsWorkflowHidden reports whether id is in render_disabled_workflows.
func (s *Store) IsWorkflowHidden(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hidden := s.renderDisabled[id]
	return hidden
}

// ModelsView is the response shape for GET /models/config.
type ModelsView struct {
	Disabled []string `json:"disabled"`
}

// SnapshotModels returns the current disabled-models set.
func (s *Store) SnapshotModels() ModelsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ModelsView{Disabled: keys(s.llmDisabled)}
}

// SnapshotWorkflows returns the current hidden-workflow-id set.
func (s *Store) SnapshotWorkflows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keys(s.renderDisabled)
}

// ToggleModel flips a single LLM model's disabled state. If enabled is
// nil the current state is flipped (spec.md §6 /models/toggle); otherwise
// the model is forced to the given enabled value. Returns the resulting
// enabled state.
func (s *Store) ToggleModel(name string, enabled *bool) (bool, error) {
	s.mu.Lock()
	_, currentlyDisabled := s.llmDisabled[name]
	newEnabled := currentlyDisabled // flip by default
	if enabled != nil {
		newEnabled = *enabled
	}

	if newEnabled {
		delete(s.llmDisabled, name)
	} else {
		s.llmDisabled[name] = struct{}{}
	}
	err := s.persistLocked()
	s.mu.Unlock()
	return newEnabled, err
}

// SetModelsEnabled bulk-applies a name->enabled map in one atomic write.
func (s *Store) SetModelsEnabled(models map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, enabled := range models {
		if enabled {
			delete(s.llmDisabled, name)
		} else {
			s.llmDisabled[name] = struct{}{}
		}
	}
	return s.persistLocked()
}

// SetWorkflowHidden toggles whether a workflow id is advertised.
func (s *Store) SetWorkflowHidden(id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hidden {
		s.renderDisabled[id] = struct{}{}
	} else {
		delete(s.renderDisabled, id)
	}
	return s.persistLocked()
}

// persistLocked writes the store to a sibling temp file then renames it
// over s.path, so a crash mid-write never leaves a partial config (spec.md
// §5, scenario 6). Caller must hold mu.
func (s *Store) persistLocked() error {
	p := persisted{
		LLMDisabledModels:       keys(s.llmDisabled),
		RenderDisabledWorkflows: keys(s.renderDisabled),
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return apperrors.WrapTyped(apperrors.ConfigWriteFailed, err, "marshal agent_config.json")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.WrapTyped(apperrors.ConfigWriteFailed, err, "write temp config")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apperrors.WrapTyped(apperrors.ConfigWriteFailed, err, fmt.Sprintf("rename temp config over %s", s.path))
	}
	return nil
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
