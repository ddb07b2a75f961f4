package workflows

// Typed model of a GitHub Actions workflow. Definitions are built from these
// structs and marshalled with yaml.v3, so user-supplied values never get
// spliced into YAML text. yaml.v3 sorts map keys, which keeps marshalling
// deterministic: identical inputs always produce byte-identical output.

// Workflow is a complete workflow definition.
type Workflow struct {
	Name    string            `yaml:"name"`
	RunName string            `yaml:"run-name,omitempty"`
	On      Trigger           `yaml:"on"`
	Env     map[string]string `yaml:"env,omitempty"`
	Jobs    map[string]Job    `yaml:"jobs"`
}

// Trigger declares how the workflow starts. Synthesized workflows are
// manual-dispatch only.
type Trigger struct {
	WorkflowDispatch Dispatch `yaml:"workflow_dispatch"`
}

// Dispatch declares the structured inputs of a workflow_dispatch trigger.
type Dispatch struct {
	Inputs map[string]Input `yaml:"inputs"`
}

// Input is a single workflow_dispatch parameter.
type Input struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Job is a single CI job.
type Job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

// Step is one entry of a job's steps list.
type Step struct {
	Name             string            `yaml:"name,omitempty"`
	Uses             string            `yaml:"uses,omitempty"`
	If               string            `yaml:"if,omitempty"`
	Shell            string            `yaml:"shell,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty"`
	With             map[string]any    `yaml:"with,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	Run              string            `yaml:"run,omitempty"`
}

// Definition is a synthesized workflow ready to publish.
type Definition struct {
	FileName string
	Content  []byte
}
