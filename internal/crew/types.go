package crew

import (
	"context"
	"maps"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
)

// Inputs are the kickoff values interpolated into agent and task templates,
// e.g. {"ticket": "AAPL", "dt_start": "2024-01-01", "dt_end": "2024-02-01"}.
type Inputs map[string]string

func (in Inputs) Clone() Inputs {
	return maps.Clone(in)
}

type inputsKey struct{}

// WithInputs stores the kickoff inputs on ctx so tools can read run
// parameters the model does not pass explicitly.
func WithInputs(ctx context.Context, in Inputs) context.Context {
	return context.WithValue(ctx, inputsKey{}, in)
}

func InputsFromContext(ctx context.Context) Inputs {
	in, _ := ctx.Value(inputsKey{}).(Inputs)
	return in
}

type Process string

const (
	ProcessSequential   Process = "sequential"
	ProcessHierarchical Process = "hierarchical"
)

// Agent is an LLM-driven role. Role, Goal and Backstory are templates with
// {name} placeholders filled from the kickoff inputs.
type Agent struct {
	Role      string
	Goal      string
	Backstory string

	Model model.ToolCallingChatModel
	Tools []tool.BaseTool

	// MaxIter caps the model round trips of a single execution.
	MaxIter int
	// Memory lets the agent see its own earlier outputs of the same run.
	Memory bool
	// AllowDelegation gives the agent tools to hand work to its coworkers.
	AllowDelegation bool
}

// Task is one unit of agent work. Outputs of Context tasks are handed to the
// agent; without Context the previous task's output is used.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task
}

type TaskOutput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Agent          string `json:"agent"`
	ExportedOutput string `json:"exported_output"`
}

// Result is produced once per Kickoff. FinalOutput is the last task's output.
type Result struct {
	RunID        string        `json:"run_id"`
	FinalOutput  string        `json:"final_output"`
	TasksOutputs []*TaskOutput `json:"tasks_outputs"`
}

// Kicker runs a crew once for the given inputs.
type Kicker interface {
	Kickoff(ctx context.Context, inputs Inputs) (*Result, error)
}
