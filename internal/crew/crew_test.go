package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	mu      sync.Mutex
	respond func(msgs []*schema.Message) (*schema.Message, error)
	calls   [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	return m.respond(input)
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, msg := range m.calls[i] {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// echoModel answers with a label plus the first line of the current task.
func echoModel(label string) *scriptedModel {
	return &scriptedModel{respond: func(msgs []*schema.Message) (*schema.Message, error) {
		task := msgs[len(msgs)-1].Content
		task = strings.TrimPrefix(strings.SplitN(task, "\n", 2)[0], "Current Task: ")
		return schema.AssistantMessage(fmt.Sprintf("Final Answer: %s did %s", label, task), nil), nil
	}}
}

func toolCallMessage(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call_1",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSequentialKickoffPassesContext(t *testing.T) {
	priceModel := echoModel("price")
	writerModel := echoModel("writer")

	price := &Agent{Role: "Price Analyst", Goal: "Find the {ticket} trend", Model: priceModel, MaxIter: 3}
	writer := &Agent{Role: "Writer", Goal: "Write about {ticket}", Model: writerModel, MaxIter: 3}

	priceTask := &Task{Name: "price", Description: "Analyze {ticket} prices", ExpectedOutput: "A trend", Agent: price}
	newsTask := &Task{Name: "news", Description: "News as of {current_date}", Agent: price}
	writeTask := &Task{Name: "write", Description: "Write the {ticket} newsletter", Agent: writer, Context: []*Task{priceTask}}

	c, err := New(context.Background(), &Config{
		Tasks: []*Task{priceTask, newsTask, writeTask},
		Now:   fixedNow,
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), Inputs{"ticket": "AAPL"})
	require.NoError(t, err)

	require.Len(t, result.TasksOutputs, 3)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "price did Analyze AAPL prices", result.TasksOutputs[0].ExportedOutput)
	assert.Equal(t, "Price Analyst", result.TasksOutputs[0].Agent)
	assert.Equal(t, "price did News as of 01/03/2024", result.TasksOutputs[1].ExportedOutput)
	assert.Equal(t, "writer did Write the AAPL newsletter", result.FinalOutput)
	assert.Equal(t, result.TasksOutputs[2].ExportedOutput, result.FinalOutput)

	// the news task has no declared context and gets the previous output
	assert.Contains(t, priceModel.prompt(1), "price did Analyze AAPL prices")
	// the writer only sees its declared context
	writerPrompt := writerModel.prompt(0)
	assert.Contains(t, writerPrompt, "You are Writer.")
	assert.Contains(t, writerPrompt, "Your personal goal is: Write about AAPL")
	assert.Contains(t, writerPrompt, "price did Analyze AAPL prices")
	assert.NotContains(t, writerPrompt, "News as of")
}

func TestMemoryShowsEarlierOutputs(t *testing.T) {
	m := echoModel("analyst")
	other := echoModel("other")
	analyst := &Agent{Role: "Analyst", Model: m, Memory: true}
	helper := &Agent{Role: "Helper", Model: other}

	first := &Task{Name: "first", Description: "step one", Agent: analyst}
	second := &Task{Name: "second", Description: "step two", Agent: helper}
	third := &Task{Name: "third", Description: "step three", Agent: analyst}

	c, err := New(context.Background(), &Config{Tasks: []*Task{first, second, third}, Now: fixedNow})
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), Inputs{})
	require.NoError(t, err)

	require.Equal(t, 2, m.callCount())
	assert.Contains(t, m.prompt(1), "This is what you already produced earlier in this run:\nanalyst did step one")
}

func TestHierarchicalManagerDelegates(t *testing.T) {
	workerModel := echoModel("writer")
	writer := &Agent{Role: "Senior Writer", Model: workerModel, MaxIter: 3}
	researcher := &Agent{Role: "Researcher", Model: echoModel("researcher"), MaxIter: 3}

	manager := &scriptedModel{respond: func(msgs []*schema.Message) (*schema.Message, error) {
		last := msgs[len(msgs)-1]
		if last.Role == schema.Tool {
			return schema.AssistantMessage("Final Answer: reviewed "+last.Content, nil), nil
		}
		return toolCallMessage(ToolDelegateWork, `{"coworker":"senior writer","task":"Draft the newsletter","context":"AAPL is up"}`), nil
	}}

	task := &Task{Name: "write", Description: "Write about {ticket}", ExpectedOutput: "A newsletter", Agent: writer}
	c, err := New(context.Background(), &Config{
		Agents:       []*Agent{researcher, writer},
		Tasks:        []*Task{task},
		Process:      ProcessHierarchical,
		ManagerModel: manager,
		MaxIter:      10,
		Verbose:      true,
		Now:          fixedNow,
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), Inputs{"ticket": "TSLA"})
	require.NoError(t, err)

	require.Len(t, result.TasksOutputs, 1)
	assert.Equal(t, "Crew Manager", result.TasksOutputs[0].Agent)
	assert.True(t, strings.HasPrefix(result.FinalOutput, "reviewed "))
	assert.Contains(t, result.FinalOutput, "writer did Draft the newsletter")

	require.Equal(t, 1, workerModel.callCount())
	workerPrompt := workerModel.prompt(0)
	assert.Contains(t, workerPrompt, "You are Senior Writer.")
	assert.Contains(t, workerPrompt, "AAPL is up")

	managerPrompt := manager.prompt(0)
	assert.Contains(t, managerPrompt, "You are Crew Manager.")
	assert.Contains(t, managerPrompt, "Current Task: Write about TSLA")
	assert.Contains(t, managerPrompt, "assigned to the Senior Writer")
}

func TestDelegationToUnknownCoworker(t *testing.T) {
	writer := &Agent{Role: "Writer", Model: echoModel("writer")}
	manager := &scriptedModel{respond: func(msgs []*schema.Message) (*schema.Message, error) {
		last := msgs[len(msgs)-1]
		if last.Role == schema.Tool {
			return schema.AssistantMessage(last.Content, nil), nil
		}
		return toolCallMessage(ToolAskQuestion, `{"coworker":"Astrologer","question":"Will it rain?"}`), nil
	}}

	c, err := New(context.Background(), &Config{
		Tasks:        []*Task{{Name: "ask", Description: "Ask around", Agent: writer}},
		Process:      ProcessHierarchical,
		ManagerModel: manager,
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, result.FinalOutput, "coworker mentioned not found")
	assert.Contains(t, result.FinalOutput, "- Writer")
}

type lookupInput struct {
	Ticker string `json:"ticker"`
}

func lookupTool() tool.BaseTool {
	return t_utils.NewTool(&schema.ToolInfo{
		Name: "lookup",
		Desc: "Look up a ticker",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"ticker": {Type: schema.String, Required: true},
		}),
	}, func(_ context.Context, in lookupInput) (string, error) {
		return "quote for " + in.Ticker, nil
	})
}

// loopingModel keeps calling the lookup tool until it is told to stop.
func loopingModel() *scriptedModel {
	return &scriptedModel{respond: func(msgs []*schema.Message) (*schema.Message, error) {
		last := msgs[len(msgs)-1]
		if last.Role == schema.User && last.Content == forceFinalAnswerPrompt {
			return schema.AssistantMessage("Final Answer: best effort", nil), nil
		}
		return toolCallMessage("lookup", `{"ticker":"AAPL"}`), nil
	}}
}

func TestMaxIterForcesFinalAnswer(t *testing.T) {
	m := loopingModel()
	analyst := &Agent{Role: "Analyst", Model: m, Tools: []tool.BaseTool{lookupTool()}, MaxIter: 3}

	c, err := New(context.Background(), &Config{
		Tasks: []*Task{{Name: "t", Description: "look it up", Agent: analyst}},
		Now:   fixedNow,
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), Inputs{})
	require.NoError(t, err)
	assert.Equal(t, "best effort", result.FinalOutput)

	// four capped rounds plus the forced answer
	require.Equal(t, 5, m.callCount())
	last := m.prompt(4)
	assert.Contains(t, last, "Current Task: look it up")
	assert.Contains(t, last, "quote for AAPL")
	assert.Contains(t, last, forceFinalAnswerPrompt)
}

func TestCoworkerAtMaxIterDoesNotFailManager(t *testing.T) {
	worker := loopingModel()
	analyst := &Agent{Role: "Price Analyst", Model: worker, Tools: []tool.BaseTool{lookupTool()}, MaxIter: 2}

	manager := &scriptedModel{respond: func(msgs []*schema.Message) (*schema.Message, error) {
		last := msgs[len(msgs)-1]
		if last.Role == schema.Tool {
			return schema.AssistantMessage("Final Answer: manager saw "+last.Content, nil), nil
		}
		return toolCallMessage(ToolDelegateWork, `{"coworker":"Price Analyst","task":"Get the AAPL price"}`), nil
	}}

	c, err := New(context.Background(), &Config{
		Tasks:        []*Task{{Name: "price", Description: "Price of {ticket}", Agent: analyst}},
		Process:      ProcessHierarchical,
		ManagerModel: manager,
		Now:          fixedNow,
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), Inputs{"ticket": "AAPL"})
	require.NoError(t, err)
	assert.Contains(t, result.FinalOutput, "best effort")
	assert.Equal(t, 4, worker.callCount())
}

func TestKickoffPropagatesModelError(t *testing.T) {
	failing := &scriptedModel{respond: func([]*schema.Message) (*schema.Message, error) {
		return nil, errors.New("rate limit exceeded")
	}}
	agent := &Agent{Role: "Analyst", Model: failing}

	c, err := New(context.Background(), &Config{Tasks: []*Task{{Name: "t", Description: "do it", Agent: agent}}})
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), Inputs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Equal(t, 1, failing.callCount())
}

func TestKickoffMissingTemplateInput(t *testing.T) {
	agent := &Agent{Role: "Analyst", Goal: "Study {ticket}", Model: echoModel("a")}
	c, err := New(context.Background(), &Config{Tasks: []*Task{{Name: "t", Description: "do it", Agent: agent}}})
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), Inputs{})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	agent := &Agent{Role: "Analyst", Model: echoModel("a")}
	first := &Task{Name: "first", Description: "one", Agent: agent}

	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"no tasks", &Config{}, "at least one task"},
		{"missing manager", &Config{Tasks: []*Task{first}, Process: ProcessHierarchical}, "manager model"},
		{"unknown process", &Config{Tasks: []*Task{first}, Process: "parallel"}, "unknown process"},
		{"reserved name", &Config{Tasks: []*Task{{Name: "end", Description: "d", Agent: agent}}}, "invalid name"},
		{"missing agent", &Config{Tasks: []*Task{{Name: "x", Description: "d"}}}, "has no agent"},
		{"duplicate name", &Config{Tasks: []*Task{first, {Name: "first", Description: "two", Agent: agent}}}, "duplicate task name"},
		{"late context", &Config{Tasks: []*Task{{Name: "x", Description: "d", Agent: agent, Context: []*Task{first}}, first}}, "does not run before it"},
		{"agent without model", &Config{Tasks: []*Task{{Name: "x", Description: "d", Agent: &Agent{Role: "r"}}}}, "has no model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, (&Config{Tasks: []*Task{first}}).Validate())
}

func TestInputsFromContext(t *testing.T) {
	assert.Nil(t, InputsFromContext(context.Background()))
	ctx := WithInputs(context.Background(), Inputs{"ticket": "MSFT"})
	assert.Equal(t, "MSFT", InputsFromContext(ctx)["ticket"])
}

func TestFinalAnswer(t *testing.T) {
	assert.Equal(t, "up", finalAnswer("Thought: done\nFinal Answer: up"))
	assert.Equal(t, "plain", finalAnswer("  plain "))
}
