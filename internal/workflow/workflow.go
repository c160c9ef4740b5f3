// Package workflow implements C6: the frozen, in-code catalog of
// supported RENDER pipelines and their readiness against the locally
// observed model catalog.
package workflow

// Sentinel placeholders substituted by the orchestrator, never by the
// agent (spec.md §4.6).
const (
	SentinelPositivePrompt = "{{POSITIVE_PROMPT}}"
	SentinelNegativePrompt = "{{NEGATIVE_PROMPT}}"
	SentinelSeed           = "{{SEED}}"
)

// Kind enumerates the pipeline families the registry supports.
type Kind string

const (
	KindText2Video  Kind = "text2video"
	KindImage2Video Kind = "image2video"
	KindText2Image  Kind = "text2image"
)

// Sampler describes the fixed sampler block of a workflow.
type Sampler struct {
	Name      string  `json:"name"`
	Scheduler string  `json:"scheduler"`
	Steps     int     `json:"steps"`
	CFG       float64 `json:"cfg"`
	Denoise   float64 `json:"denoise"`
}

// Node is one entry of a workflow graph, shaped like the RENDER API's own
// node-id -> node-spec JSON. Never interpreted by the agent.
type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
}

// Spec is one immutable registry entry.
type Spec struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        Kind            `json:"kind"`
	Resolution  string          `json:"resolution"`
	FPS         int             `json:"fps"`
	Frames      int             `json:"frames"`
	Models      map[string]string `json:"models"` // slot -> required file name
	Sampler     Sampler         `json:"sampler"`
	Graph       map[string]Node `json:"graph"`
}

// Registry is the frozen, compile-time workflow table.
type Registry struct {
	specs map[string]Spec
	order []string
}

// NewRegistry builds the registry from the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{specs: map[string]Spec{}}
	for _, s := range builtinCatalog() {
		r.specs[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	return r
}

// Get returns a spec by id.
func (r *Registry) Get(id string) (Spec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

// IDs returns every registered workflow id, in catalog order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SlotReadiness reports whether one required model file was observed.
type SlotReadiness struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Readiness is the result of intersecting a workflow's required files
// with the flattened RENDER catalog (spec.md §4.6 / invariant I7).
type Readiness struct {
	AllAvailable bool                     `json:"all_available"`
	Slots        map[string]SlotReadiness `json:"slots"`
}

// EvaluateReadiness computes readiness for workflow id given catalog, a
// RENDER slot->file-names map as observed by C2. Returns false, !ok when
// the id is unknown.
func (r *Registry) EvaluateReadiness(id string, catalog map[string][]string) (Readiness, bool) {
	spec, ok := r.specs[id]
	if !ok {
		return Readiness{}, false
	}

	flat := flattenCatalog(catalog)
	result := Readiness{AllAvailable: true, Slots: map[string]SlotReadiness{}}
	for slot, file := range spec.Models {
		_, present := flat[file]
		result.Slots[slot] = SlotReadiness{Name: file, Available: present}
		if !present {
			result.AllAvailable = false
		}
	}
	return result, true
}

func flattenCatalog(catalog map[string][]string) map[string]struct{} {
	flat := make(map[string]struct{})
	for _, files := range catalog {
		for _, f := range files {
			flat[f] = struct{}{}
		}
	}
	return flat
}
