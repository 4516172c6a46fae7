package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/dyike/StockAnalyzerAI/consts"
)

const (
	defaultMaxIter = 15

	nodePrepare = "prepare"
	nodeCollect = "collect"

	contextSeparator = "\n\n----------\n\n"
)

// Config describes a crew. Agents may be left empty, in which case the
// agents bound to the tasks are used.
type Config struct {
	Name         string
	Agents       []*Agent
	Tasks        []*Task
	Process      Process
	ManagerModel model.ToolCallingChatModel
	// MaxIter is the manager's iteration cap in hierarchical mode.
	MaxIter int
	Verbose bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Crew runs its tasks in declared order as a compiled eino graph.
type Crew struct {
	name     string
	agents   []*Agent
	tasks    []*Task
	process  Process
	manager  *Agent
	verbose  bool
	logger   *slog.Logger
	now      func() time.Time
	runnable compose.Runnable[Inputs, *Result]
}

type boundAgent struct {
	src       *Agent
	role      string
	goal      string
	backstory string
}

type runState struct {
	runID   string
	inputs  Inputs
	agents  map[*Agent]*boundAgent
	outputs map[*Task]*TaskOutput
	ordered []*TaskOutput
	memory  map[*Agent][]string
}

func New(ctx context.Context, cfg *Config) (*Crew, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Crew{
		name:    cfg.Name,
		tasks:   cfg.Tasks,
		process: cfg.Process,
		verbose: cfg.Verbose,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if c.name == "" {
		c.name = "crew"
	}
	if c.process == "" {
		c.process = ProcessSequential
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.agents = cfg.Agents
	if len(c.agents) == 0 {
		seen := map[*Agent]bool{}
		for _, t := range cfg.Tasks {
			if t.Agent != nil && !seen[t.Agent] {
				seen[t.Agent] = true
				c.agents = append(c.agents, t.Agent)
			}
		}
	}

	if c.process == ProcessHierarchical {
		maxIter := cfg.MaxIter
		if maxIter <= 0 {
			maxIter = defaultMaxIter
		}
		c.manager = &Agent{
			Role:            consts.Agent_CrewManager,
			Goal:            managerGoal,
			Backstory:       managerBackstory,
			Model:           cfg.ManagerModel,
			MaxIter:         maxIter,
			AllowDelegation: true,
		}
	}

	runnable, err := c.compile(ctx)
	if err != nil {
		return nil, err
	}
	c.runnable = runnable
	return c, nil
}

// Validate checks the crew shape before anything is compiled.
func (cfg *Config) Validate() error {
	if len(cfg.Tasks) == 0 {
		return errors.New("crew must have at least one task")
	}
	switch cfg.Process {
	case "", ProcessSequential:
	case ProcessHierarchical:
		if cfg.ManagerModel == nil {
			return errors.New("hierarchical process requires a manager model")
		}
	default:
		return fmt.Errorf("unknown process %q", cfg.Process)
	}

	var errs []error
	position := make(map[*Task]int, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		if t == nil {
			errs = append(errs, fmt.Errorf("task %d is nil", i))
			continue
		}
		if slices.Contains([]string{"", nodePrepare, nodeCollect, compose.START, compose.END}, t.Name) {
			errs = append(errs, fmt.Errorf("task %d has an invalid name %q", i, t.Name))
		}
		for other := range position {
			if other.Name == t.Name {
				errs = append(errs, fmt.Errorf("duplicate task name %q", t.Name))
			}
		}
		if t.Description == "" {
			errs = append(errs, fmt.Errorf("task %s has no description", t.Name))
		}
		if t.Agent == nil && cfg.Process != ProcessHierarchical {
			errs = append(errs, fmt.Errorf("task %s has no agent", t.Name))
		}
		for _, dep := range t.Context {
			if _, ok := position[dep]; !ok {
				errs = append(errs, fmt.Errorf("task %s uses context from a task that does not run before it", t.Name))
			}
		}
		position[t] = i
	}

	agents := slices.Clone(cfg.Agents)
	for _, t := range cfg.Tasks {
		if t != nil && t.Agent != nil && !slices.Contains(agents, t.Agent) {
			agents = append(agents, t.Agent)
		}
	}
	for _, a := range agents {
		if a == nil {
			continue
		}
		if a.Role == "" {
			errs = append(errs, errors.New("agent has no role"))
		}
		if a.Model == nil {
			errs = append(errs, fmt.Errorf("agent %q has no model", a.Role))
		}
	}
	return errors.Join(errs...)
}

func (c *Crew) compile(ctx context.Context) (compose.Runnable[Inputs, *Result], error) {
	g := compose.NewGraph[Inputs, *Result](compose.WithGenLocalState[*runState](func(ctx context.Context) *runState {
		return &runState{
			agents:  map[*Agent]*boundAgent{},
			outputs: map[*Task]*TaskOutput{},
			memory:  map[*Agent][]string{},
		}
	}))

	if err := g.AddLambdaNode(nodePrepare, compose.InvokableLambda(c.prepare)); err != nil {
		return nil, err
	}
	prev := nodePrepare
	for i, t := range c.tasks {
		if err := g.AddLambdaNode(t.Name, compose.InvokableLambda(c.taskNode(i))); err != nil {
			return nil, err
		}
		if err := g.AddEdge(prev, t.Name); err != nil {
			return nil, err
		}
		prev = t.Name
	}
	if err := g.AddLambdaNode(nodeCollect, compose.InvokableLambda(c.collect)); err != nil {
		return nil, err
	}

	_ = g.AddEdge(compose.START, nodePrepare)
	_ = g.AddEdge(prev, nodeCollect)
	_ = g.AddEdge(nodeCollect, compose.END)

	return g.Compile(ctx, compose.WithGraphName(c.name))
}

// Kickoff runs every task once. current_date is added to the inputs when the
// caller did not set it.
func (c *Crew) Kickoff(ctx context.Context, inputs Inputs) (*Result, error) {
	in := inputs.Clone()
	if in == nil {
		in = Inputs{}
	}
	if _, ok := in[consts.Input_CurrentDate]; !ok {
		in[consts.Input_CurrentDate] = c.now().Format("02/01/2006")
	}

	runID := uuid.NewString()
	logger := c.logger.With("crew", c.name, "run_id", runID)
	logger.Info("crew kickoff", "process", c.process, "tasks", len(c.tasks))

	ctx = WithInputs(ctx, in)
	ctx = withRunID(ctx, runID)

	var opts []compose.Option
	if c.verbose {
		opts = append(opts, compose.WithCallbacks(newLogHandler(logger)))
	}

	start := time.Now()
	result, err := c.runnable.Invoke(ctx, in, opts...)
	if err != nil {
		logger.Error("crew run failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("crew %s run %s: %w", c.name, runID, err)
	}
	logger.Info("crew finished", "elapsed", time.Since(start))
	return result, nil
}

func (c *Crew) prepare(ctx context.Context, in Inputs) (Inputs, error) {
	agents := make(map[*Agent]*boundAgent, len(c.agents)+1)
	bind := func(a *Agent) error {
		if a == nil || agents[a] != nil {
			return nil
		}
		b, err := bindAgent(ctx, a, in)
		if err != nil {
			return err
		}
		agents[a] = b
		return nil
	}
	for _, a := range c.agents {
		if err := bind(a); err != nil {
			return nil, err
		}
	}
	for _, t := range c.tasks {
		if err := bind(t.Agent); err != nil {
			return nil, err
		}
	}
	if err := bind(c.manager); err != nil {
		return nil, err
	}

	err := compose.ProcessState[*runState](ctx, func(_ context.Context, s *runState) error {
		s.runID = runIDFromContext(ctx)
		s.inputs = in
		s.agents = agents
		return nil
	})
	return in, err
}

func (c *Crew) taskNode(idx int) func(ctx context.Context, in Inputs) (Inputs, error) {
	task := c.tasks[idx]
	return func(ctx context.Context, in Inputs) (Inputs, error) {
		var (
			taskContext string
			agents      map[*Agent]*boundAgent
			memory      map[*Agent][]string
		)
		err := compose.ProcessState[*runState](ctx, func(_ context.Context, s *runState) error {
			taskContext = s.contextFor(task)
			agents = s.agents
			memory = make(map[*Agent][]string, len(s.memory))
			for a, m := range s.memory {
				memory[a] = append([]string(nil), m...)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		description, err := render(ctx, task.Description, in)
		if err != nil {
			return nil, fmt.Errorf("task %s description: %w", task.Name, err)
		}
		expected, err := render(ctx, task.ExpectedOutput, in)
		if err != nil {
			return nil, fmt.Errorf("task %s expected output: %w", task.Name, err)
		}

		r := &run{crew: c, agents: agents, memory: memory}
		executor, output, err := r.executeTask(ctx, task, description, expected, taskContext)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}

		err = compose.ProcessState[*runState](ctx, func(_ context.Context, s *runState) error {
			out := &TaskOutput{
				Name:           task.Name,
				Description:    description,
				Agent:          executor.role,
				ExportedOutput: output,
			}
			s.outputs[task] = out
			s.ordered = append(s.ordered, out)
			if owner := task.Agent; owner != nil && owner.Memory {
				s.memory[owner] = append(s.memory[owner], output)
			}
			return nil
		})
		return in, err
	}
}

func (c *Crew) collect(ctx context.Context, _ Inputs) (*Result, error) {
	var result *Result
	err := compose.ProcessState[*runState](ctx, func(_ context.Context, s *runState) error {
		if len(s.ordered) == 0 {
			return errors.New("no task produced an output")
		}
		result = &Result{
			RunID:        s.runID,
			FinalOutput:  s.ordered[len(s.ordered)-1].ExportedOutput,
			TasksOutputs: append([]*TaskOutput(nil), s.ordered...),
		}
		return nil
	})
	return result, err
}

// contextFor returns the outputs of the declared context tasks, or the
// previous task's output when none are declared.
func (s *runState) contextFor(task *Task) string {
	if len(task.Context) == 0 {
		if len(s.ordered) == 0 {
			return ""
		}
		return s.ordered[len(s.ordered)-1].ExportedOutput
	}
	parts := make([]string, 0, len(task.Context))
	for _, dep := range task.Context {
		if out, ok := s.outputs[dep]; ok {
			parts = append(parts, out.ExportedOutput)
		}
	}
	return strings.Join(parts, contextSeparator)
}

func bindAgent(ctx context.Context, a *Agent, in Inputs) (*boundAgent, error) {
	role, err := render(ctx, a.Role, in)
	if err != nil {
		return nil, fmt.Errorf("agent role: %w", err)
	}
	goal, err := render(ctx, a.Goal, in)
	if err != nil {
		return nil, fmt.Errorf("agent %s goal: %w", role, err)
	}
	backstory, err := render(ctx, a.Backstory, in)
	if err != nil {
		return nil, fmt.Errorf("agent %s backstory: %w", role, err)
	}
	return &boundAgent{src: a, role: role, goal: goal, backstory: backstory}, nil
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
