// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"fmt"
	"strings"
)

// RegisterLessonAgents registers the six agents of the comprehensive lesson
// workflow against the given generation backend.
func RegisterLessonAgents(reg *Registry, gen Generator) {
	reg.Register(newCurriculumPlanner(gen))
	reg.Register(newContentCreator(gen))
	reg.Register(newMaterialDifferentiator(gen))
	reg.Register(newAssessmentCreator(gen))
	reg.Register(newVisualDesigner(gen))
	reg.Register(newIntegrationSpecialist(gen))
}

// textAgent is the shared shape of single-call lesson agents: one persona,
// one prompt builder per task, one output key.
type textAgent struct {
	info      Info
	gen       Generator
	persona   string
	outputKey string
	prompt    func(input map[string]any) string
}

func (a *textAgent) Info() Info { return a.info }

func (a *textAgent) Invoke(ctx context.Context, task string, input map[string]any) (map[string]any, error) {
	if !supportsTask(a.info, task) {
		return nil, fmt.Errorf("task %q not supported by %s", task, a.info.ID)
	}
	prompt := a.persona + "\n\n" + a.prompt(input) + "\n\n" + languageDirective(input)
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return map[string]any{a.outputKey: text}, nil
}

func supportsTask(info Info, task string) bool {
	for _, t := range info.Tasks {
		if t == task {
			return true
		}
	}
	return false
}

// requestData pulls the original request parameters from a resolved input.
func requestData(input map[string]any) map[string]any {
	if m, ok := input["request"].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func requestString(input map[string]any, key string) string {
	if s, ok := requestData(input)[key].(string); ok {
		return s
	}
	return ""
}

func requestStrings(input map[string]any, key string) []string {
	switch v := requestData(input)[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func languageDirective(input map[string]any) string {
	lang := requestString(input, "language")
	if lang == "" {
		return "Respond in English."
	}
	return fmt.Sprintf("Respond entirely in the language with code %q.", lang)
}

func describeUpstream(input map[string]any, key string) string {
	m, ok := input[key].(map[string]any)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for k, v := range m {
		fmt.Fprintf(&sb, "%s:\n%v\n\n", k, v)
	}
	return sb.String()
}

func newCurriculumPlanner(gen Generator) *textAgent {
	return &textAgent{
		gen: gen,
		info: Info{
			ID:          "curriculum_planner",
			Name:        "Curriculum Planner",
			Description: "Analyzes curriculum requirements and produces a structured teaching plan",
			Tasks:       []string{"analyze_curriculum_requirements"},
		},
		persona: "You are an experienced curriculum planner. You analyze teaching " +
			"requests and produce a structured analysis covering learning objectives, " +
			"prerequisite knowledge, recommended sequencing and age-appropriate depth.",
		outputKey: "curriculum_analysis",
		prompt: func(input map[string]any) string {
			return fmt.Sprintf(
				"Analyze the curriculum requirements for this request.\nSubjects: %s\nGrade levels: %s\nLearning goals: %s",
				strings.Join(requestStrings(input, "subjects"), ", "),
				strings.Join(requestStrings(input, "grade_levels"), ", "),
				requestString(input, "learning_goals"),
			)
		},
	}
}

func newMaterialDifferentiator(gen Generator) *textAgent {
	return &textAgent{
		gen: gen,
		info: Info{
			ID:          "material_differentiator",
			Name:        "Material Differentiator",
			Description: "Adapts base content into differentiated materials for varied learner needs",
			Tasks:       []string{"create_differentiated_materials"},
		},
		persona: "You are a specialist in differentiated instruction. Given base " +
			"teaching content, you produce variants for struggling, on-level and " +
			"advanced learners, preserving the learning objectives in each.",
		outputKey: "differentiated_materials",
		prompt: func(input map[string]any) string {
			return "Create differentiated versions of the following base content:\n\n" +
				describeUpstream(input, "base_content")
		},
	}
}

func newAssessmentCreator(gen Generator) *textAgent {
	return &textAgent{
		gen: gen,
		info: Info{
			ID:          "assessment_creator",
			Name:        "Assessment Creator",
			Description: "Designs formative and summative assessments aligned with the content",
			Tasks:       []string{"design_assessments"},
		},
		persona: "You are an assessment designer. You create formative checks and a " +
			"summative assessment aligned with the provided content and its " +
			"differentiated variants, with an answer key.",
		outputKey: "assessments",
		prompt: func(input map[string]any) string {
			return "Design assessments for the following content and materials:\n\n" +
				describeUpstream(input, "base_content") +
				describeUpstream(input, "differentiated_materials")
		},
	}
}

func newVisualDesigner(gen Generator) *textAgent {
	return &textAgent{
		gen: gen,
		info: Info{
			ID:          "visual_designer",
			Name:        "Visual Designer",
			Description: "Describes visual aids, diagrams and board layouts for the lesson",
			Tasks:       []string{"create_visual_aids"},
		},
		persona: "You are a visual learning designer. You describe concrete visual " +
			"aids a teacher can draw or print: diagrams, charts, board layouts and " +
			"manipulatives, each tied to a point in the lesson.",
		outputKey: "visual_aids",
		prompt: func(input map[string]any) string {
			return "Propose visual aids for the following lesson content:\n\n" +
				describeUpstream(input, "base_content")
		},
	}
}

func newIntegrationSpecialist(gen Generator) *textAgent {
	return &textAgent{
		gen: gen,
		info: Info{
			ID:          "integration_specialist",
			Name:        "Integration Specialist",
			Description: "Compiles all step outputs into a coherent lesson package",
			Tasks:       []string{"compile_lesson_package"},
		},
		persona: "You are a lesson integration specialist. You weave analysis, " +
			"content, materials, assessments and visual aids into one coherent, " +
			"ready-to-teach lesson package with a clear running order.",
		outputKey: "lesson_package",
		prompt: func(input map[string]any) string {
			return "Compile a complete lesson package from these outputs:\n\n" +
				describeUpstream(input, "all_outputs")
		},
	}
}

// contentCreator fans out over every subject and grade level combination,
// generating a story and a worksheet for each.
type contentCreator struct {
	gen Generator
}

func newContentCreator(gen Generator) *contentCreator {
	return &contentCreator{gen: gen}
}

func (c *contentCreator) Info() Info {
	return Info{
		ID:          "content_creator",
		Name:        "Content Creator",
		Description: "Generates base teaching content per subject and grade level",
		Tasks:       []string{"generate_base_content"},
	}
}

func (c *contentCreator) Invoke(ctx context.Context, task string, input map[string]any) (map[string]any, error) {
	if !supportsTask(c.Info(), task) {
		return nil, fmt.Errorf("task %q not supported by %s", task, c.Info().ID)
	}

	subjects := requestStrings(input, "subjects")
	grades := requestStrings(input, "grade_levels")
	if len(subjects) == 0 {
		subjects = []string{"general"}
	}
	if len(grades) == 0 {
		grades = []string{"mixed"}
	}

	persona := "You are a creative teaching content writer. You write engaging, " +
		"age-appropriate stories and worksheets grounded in the curriculum analysis."
	analysis := describeUpstream(input, "curriculum_analysis")
	directive := languageDirective(input)
	goals := requestString(input, "learning_goals")

	content := make(map[string]any, len(subjects)*len(grades))
	for _, subject := range subjects {
		for _, grade := range grades {
			story, err := c.gen.Generate(ctx, fmt.Sprintf(
				"%s\n\nWrite a short teaching story for subject %q, grade %q.\nLearning goals: %s\nCurriculum analysis:\n%s\n%s",
				persona, subject, grade, goals, analysis, directive))
			if err != nil {
				return nil, fmt.Errorf("story for %s grade %s: %w", subject, grade, err)
			}
			worksheet, err := c.gen.Generate(ctx, fmt.Sprintf(
				"%s\n\nWrite a practice worksheet for subject %q, grade %q matching this story:\n%s\n%s",
				persona, subject, grade, story, directive))
			if err != nil {
				return nil, fmt.Errorf("worksheet for %s grade %s: %w", subject, grade, err)
			}
			content[fmt.Sprintf("%s_%s", subject, grade)] = map[string]any{
				"story":     story,
				"worksheet": worksheet,
			}
		}
	}
	return map[string]any{"content": content}, nil
}
