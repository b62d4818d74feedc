// Package skill manages assistance skills: the system prompt material and
// keyword vocabulary each request draws on.
package skill

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"promptrelay/internal/domain"
)

// DefaultSkill is used when a request names no skill or an unknown one
const DefaultSkill = "general"

// Definition describes one skill
type Definition struct {
	ID                        string   `json:"id"`
	Name                      string   `json:"name"`
	Prompt                    string   `json:"prompt"`
	Keywords                  []string `json:"keywords,omitempty"`
	RequiresLanguageDirective bool     `json:"requires_language_directive,omitempty"`
}

// Registry holds skill definitions. It is seeded with the builtin set and
// can absorb custom definitions at startup.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Definition
}

// NewRegistry creates a registry seeded with the builtin skills
func NewRegistry() *Registry {
	r := &Registry{skills: make(map[string]Definition)}
	for _, def := range builtinSkills() {
		r.skills[def.ID] = def
	}
	return r
}

// Register adds or replaces a skill definition
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("skill id must not be empty")
	}
	if def.Prompt == "" {
		return fmt.Errorf("skill %q has no prompt", def.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[def.ID] = def
	return nil
}

// Resolve returns the definition for a skill ID, falling back to the
// default skill when the ID is empty or unknown
func (r *Registry) Resolve(id string) Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" {
		return r.skills[DefaultSkill]
	}
	if def, ok := r.skills[id]; ok {
		return def
	}
	slog.Warn("Unknown skill requested, using default", "skill", id)
	return r.skills[DefaultSkill]
}

// Context resolves a skill into the prompt material for a request,
// appending the language directive when the skill calls for one
func (r *Registry) Context(id, targetLanguage string) domain.SkillContext {
	def := r.Resolve(id)

	prompt := def.Prompt
	if def.RequiresLanguageDirective && targetLanguage != "" {
		prompt += fmt.Sprintf("\n\nWrite all code in %s unless the question explicitly asks for another language.", targetLanguage)
	}

	return domain.SkillContext{
		Skill:                     def.ID,
		SystemPrompt:              prompt,
		RequiresLanguageDirective: def.RequiresLanguageDirective,
	}
}

// Keywords returns the keyword vocabulary for a skill
func (r *Registry) Keywords(id string) []string {
	return r.Resolve(id).Keywords
}

// IDs returns all registered skill IDs, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// builtinSkills returns the skill set shipped with the service
func builtinSkills() []Definition {
	return []Definition{
		{
			ID:     "dsa",
			Name:   "Data Structures & Algorithms",
			Prompt: "You are an expert algorithms coach assisting in real time. For each problem: restate it in one sentence, outline the approach, state time and space complexity, then give a clean working solution. Prefer the simplest approach that meets the constraints and call out edge cases worth testing.",
			Keywords: []string{
				"algorithm", "complexity", "big o", "array", "linked list",
				"binary tree", "graph", "heap", "hash map", "dynamic programming",
				"recursion", "two pointers", "sliding window", "sort", "binary search",
			},
			RequiresLanguageDirective: true,
		},
		{
			ID:     "system-design",
			Name:   "System Design",
			Prompt: "You are a senior systems architect assisting in real time. Structure answers as: requirements and scale estimates, high-level design, data model, then deep dives on the interesting components. Mention concrete technology choices and the trade-offs between them.",
			Keywords: []string{
				"system design", "architecture", "scalability", "load balancer",
				"database", "cache", "message queue", "sharding", "replication",
				"microservice", "consistency", "availability", "throughput",
			},
		},
		{
			ID:     "coding",
			Name:   "Practical Coding",
			Prompt: "You are a pragmatic senior engineer assisting in real time. Give working, idiomatic code with brief reasoning. When debugging, identify the likely cause before proposing the fix. Keep explanations short and concrete.",
			Keywords: []string{
				"code", "function", "implement", "debug", "refactor",
				"api", "class", "unit test", "error", "bug",
			},
			RequiresLanguageDirective: true,
		},
		{
			ID:     "behavioral",
			Name:   "Behavioral",
			Prompt: "You are a communication coach assisting in real time. Help structure answers using situation, task, action, and result. Keep suggested answers honest, specific, and under two minutes of speaking time.",
			Keywords: []string{
				"tell me about", "behavioral", "experience", "conflict",
				"leadership", "strength", "weakness", "challenge", "teamwork",
			},
		},
		{
			ID:     DefaultSkill,
			Name:   "General Assistance",
			Prompt: "You are a helpful assistant providing real-time support. Answer directly and concisely. If the question is ambiguous, answer the most likely interpretation and note the assumption.",
		},
	}
}
