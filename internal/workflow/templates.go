// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Template describes how to build an execution plan for one workflow type.
type Template struct {
	Type     string   `yaml:"type"`
	Required []string `yaml:"required"`
	Steps    []Step   `yaml:"-"`
}

// Templates is the registry of workflow templates. It ships with the
// built-in templates and can load additional ones from YAML files.
type Templates struct {
	mu sync.RWMutex
	m  map[string]Template
}

// NewTemplates returns a registry preloaded with the built-in templates.
func NewTemplates() *Templates {
	t := &Templates{m: make(map[string]Template)}
	t.register(comprehensiveLessonTemplate())
	return t
}

func (t *Templates) register(tpl Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[tpl.Type] = tpl
}

// Types returns the registered workflow types in sorted order.
func (t *Templates) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	types := make([]string, 0, len(t.m))
	for k := range t.m {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Build constructs a validated execution plan for the request. The full
// request data is handed to every step as the "request" input so agents can
// read the original parameters next to their wired upstream outputs.
func (t *Templates) Build(req Request) (Plan, error) {
	t.mu.RLock()
	tpl, ok := t.m[req.Type]
	t.mu.RUnlock()
	if !ok {
		return Plan{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown workflow type %q", req.Type)}
	}
	for _, field := range tpl.Required {
		if v, ok := req.Data[field]; !ok || v == nil {
			return Plan{}, &ValidationError{Field: field, Reason: "required field is missing"}
		}
	}

	plan := Plan{Type: tpl.Type, Steps: make([]Step, len(tpl.Steps))}
	for i, s := range tpl.Steps {
		inputs := make(map[string]InputValue, len(s.Inputs)+1)
		for k, v := range s.Inputs {
			inputs[k] = v
		}
		inputs["request"] = Literal(req.Data)
		s.Inputs = inputs
		plan.Steps[i] = s
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// LoadDir registers every *.yaml / *.yml template found in dir. Templates
// that fail validation abort the load; a missing directory is not an error.
func (t *Templates) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading template dir: %w", err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		tpl, err := loadTemplateFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("template %s: %w", e.Name(), err)
		}
		t.register(tpl)
	}
	return nil
}

// templateFile is the YAML document shape for file-based templates. Input
// values are plain YAML scalars; the strings "step_N_output" and
// "all_outputs" are resolved to step references, everything else is a
// literal.
type templateFile struct {
	Type     string   `yaml:"type"`
	Required []string `yaml:"required"`
	Steps    []struct {
		Step       int            `yaml:"step"`
		Capability string         `yaml:"capability"`
		Task       string         `yaml:"task"`
		DependsOn  []int          `yaml:"depends_on"`
		Inputs     map[string]any `yaml:"inputs"`
	} `yaml:"steps"`
}

var stepOutputRef = regexp.MustCompile(`^step_(\d+)_output$`)

func loadTemplateFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return Template{}, fmt.Errorf("parsing yaml: %w", err)
	}
	if tf.Type == "" {
		return Template{}, fmt.Errorf("template has no type")
	}

	tpl := Template{Type: tf.Type, Required: tf.Required}
	for _, fs := range tf.Steps {
		step := Step{
			Number:     fs.Step,
			Capability: fs.Capability,
			Task:       fs.Task,
			DependsOn:  fs.DependsOn,
			Inputs:     make(map[string]InputValue, len(fs.Inputs)),
		}
		for name, raw := range fs.Inputs {
			step.Inputs[name] = parseInputValue(raw)
		}
		tpl.Steps = append(tpl.Steps, step)
	}

	plan := Plan{Type: tpl.Type, Steps: tpl.Steps}
	if err := plan.Validate(); err != nil {
		return Template{}, err
	}
	if _, err := Partition(plan); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

func parseInputValue(raw any) InputValue {
	s, ok := raw.(string)
	if !ok {
		return Literal(raw)
	}
	if s == "all_outputs" {
		return AllPrior()
	}
	if m := stepOutputRef.FindStringSubmatch(s); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		return FromStep(n)
	}
	return Literal(s)
}

// comprehensiveLessonTemplate is the built-in six-step lesson workflow:
// curriculum analysis feeds content creation, which fans out into
// differentiation, assessment and visual design before a final integration
// step compiles the package.
func comprehensiveLessonTemplate() Template {
	return Template{
		Type:     "comprehensive_lesson",
		Required: []string{"subjects", "grade_levels", "learning_goals", "language"},
		Steps: []Step{
			{
				Number:     1,
				Capability: "curriculum_planner",
				Task:       "analyze_curriculum_requirements",
			},
			{
				Number:     2,
				Capability: "content_creator",
				Task:       "generate_base_content",
				DependsOn:  []int{1},
				Inputs: map[string]InputValue{
					"curriculum_analysis": FromStep(1),
				},
			},
			{
				Number:     3,
				Capability: "material_differentiator",
				Task:       "create_differentiated_materials",
				DependsOn:  []int{2},
				Inputs: map[string]InputValue{
					"base_content": FromStep(2),
				},
			},
			{
				Number:     4,
				Capability: "assessment_creator",
				Task:       "design_assessments",
				DependsOn:  []int{2, 3},
				Inputs: map[string]InputValue{
					"base_content":             FromStep(2),
					"differentiated_materials": FromStep(3),
				},
			},
			{
				Number:     5,
				Capability: "visual_designer",
				Task:       "create_visual_aids",
				DependsOn:  []int{2},
				Inputs: map[string]InputValue{
					"base_content": FromStep(2),
				},
			},
			{
				Number:     6,
				Capability: "integration_specialist",
				Task:       "compile_lesson_package",
				DependsOn:  []int{1, 2, 3, 4, 5},
				Inputs: map[string]InputValue{
					"all_outputs": AllPrior(),
				},
			},
		},
	}
}
