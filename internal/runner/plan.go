package runner

import (
	"fmt"

	"github.com/tidemark-data/tidemark/internal/dag"
	"github.com/tidemark-data/tidemark/internal/executor"
)

// Plan is an ordered sequence of steps for one pipeline application. Steps
// execute in the given order; declared dependencies gate execution and are
// validated (known IDs, no cycles) before anything runs.
type Plan struct {
	// Name is the job-name prefix in lineage events.
	Name  string
	Steps []*Step
}

// validate checks step IDs and the dependency graph before any side effect.
func (p *Plan) validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %q has no steps", p.Name)
	}

	g := dag.New()
	seen := make(map[string]bool)
	for _, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("plan %q: step with empty id", p.Name)
		}
		if step.Command == nil && step.Check == nil {
			return fmt.Errorf("step %q has neither a command nor a check", step.ID)
		}
		if step.Command != nil && step.Check != nil {
			return fmt.Errorf("step %q has both a command and a check", step.ID)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		seen[step.ID] = true
		g.AddNode(step.ID)
	}

	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if err := g.AddEdge(dep, step.ID); err != nil {
				return fmt.Errorf("step %q: %w", step.ID, err)
			}
		}
	}

	if _, err := g.TopologicalSort(); err != nil {
		return fmt.Errorf("plan %q: %w", p.Name, err)
	}
	return nil
}

// IngestStep builds the ingestion step: run a named job of the external
// ingestion tool.
func IngestStep(binary, projectDir, job string, inputs, outputs []string) *Step {
	return &Step{
		ID:   "ingest",
		Kind: StepKindIngest,
		Command: &executor.Command{
			Argv: []string{binary, "run", job},
			Dir:  projectDir,
		},
		Inputs:  inputs,
		Outputs: outputs,
	}
}

// TransformStep builds one transformation-layer step selecting the layer's
// models, depending on the previous step in the chain.
func TransformStep(binary, projectDir, profilesDir, layer string, dependsOn []string, inputs, outputs []string) *Step {
	return &Step{
		ID:   "transform-" + layer,
		Kind: StepKindTransform,
		Command: &executor.Command{
			Argv: []string{binary, "run", "--select", layer},
			Dir:  projectDir,
			Env:  []string{"DBT_PROFILES_DIR=" + profilesDir},
		},
		DependsOn: dependsOn,
		Inputs:    inputs,
		Outputs:   outputs,
	}
}

// OperationStep builds a step running an arbitrary operation of the
// transformation tool.
func OperationStep(binary, projectDir, profilesDir, operation string, dependsOn []string) *Step {
	return &Step{
		ID:   "operation-" + operation,
		Kind: StepKindOperation,
		Command: &executor.Command{
			Argv: []string{binary, "run-operation", operation},
			Dir:  projectDir,
			Env:  []string{"DBT_PROFILES_DIR=" + profilesDir},
		},
		DependsOn: dependsOn,
	}
}

// TestStep builds the transformation tool's test step. Test steps are
// declared independent: they run even when an upstream layer failed, so a
// partial run still records what it can.
func TestStep(binary, projectDir, profilesDir string, outputs []string) *Step {
	return &Step{
		ID:   "test",
		Kind: StepKindTest,
		Command: &executor.Command{
			Argv: []string{binary, "test"},
			Dir:  projectDir,
			Env:  []string{"DBT_PROFILES_DIR=" + profilesDir},
		},
		AlwaysRun:  true,
		ParseTests: ParseToolTests,
		Outputs:    outputs,
	}
}

// CheckStep builds an in-process test step from a check function.
func CheckStep(id string, check CheckFunc, dependsOn []string, outputs []string) *Step {
	return &Step{
		ID:        id,
		Kind:      StepKindTest,
		Check:     check,
		DependsOn: dependsOn,
		Outputs:   outputs,
	}
}
