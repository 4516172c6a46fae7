package analyzer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
)

type echoModel struct {
	mu      sync.Mutex
	label   string
	prompts []string
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	last := input[len(input)-1].Content
	m.mu.Lock()
	m.prompts = append(m.prompts, last)
	m.mu.Unlock()
	first := strings.TrimPrefix(strings.SplitN(last, "\n", 2)[0], "Current Task: ")
	return schema.AssistantMessage(m.label+": "+first, nil), nil
}

func (m *echoModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *echoModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string, time.Time, time.Time) (*dataflows.PriceSeries, error) {
	return &dataflows.PriceSeries{}, nil
}

type nopSearcher struct{}

func (nopSearcher) Search(context.Context, string) ([]*dataflows.NewsItem, error) {
	return nil, nil
}

func TestLoadDefinition(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	assert.Equal(t, string(crew.ProcessHierarchical), def.Process)
	assert.Equal(t, 10, def.MaxIter)

	require.Len(t, def.Agents, 3)
	assert.Equal(t, consts.Agent_StockPriceAnalyst, def.Agents[0].Role)
	assert.Equal(t, 3, def.Agents[0].MaxIter)
	assert.Equal(t, []string{toolStockPrice}, def.Agents[0].Tools)
	assert.Equal(t, consts.Agent_StockNewsAnalyst, def.Agents[1].Role)
	assert.Equal(t, 7, def.Agents[1].MaxIter)
	assert.Equal(t, consts.Agent_StockAnalystWriter, def.Agents[2].Role)
	assert.True(t, def.Agents[2].AllowDelegation)
	assert.Empty(t, def.Agents[2].Tools)
	for _, a := range def.Agents {
		assert.True(t, a.Memory, a.ID)
	}

	require.Len(t, def.Tasks, 3)
	assert.Equal(t, consts.Task_GetStockPrice, def.Tasks[0].Name)
	assert.Equal(t, consts.Task_GetStockNews, def.Tasks[1].Name)
	assert.Equal(t, consts.Task_WriteAnalyses, def.Tasks[2].Name)
	assert.Equal(t, []string{consts.Task_GetStockPrice, consts.Task_GetStockNews}, def.Tasks[2].Context)
	assert.Contains(t, def.Tasks[1].Description, "{current_date}")
}

func TestBuildAndKickoff(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	agentModel := &echoModel{label: "agent"}
	managerModel := &echoModel{label: "manager"}
	c, err := Build(context.Background(), def, Deps{
		Model:        agentModel,
		ManagerModel: managerModel,
		Prices:       nopFetcher{},
		News:         nopSearcher{},
		Now:          func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	result, err := c.Kickoff(context.Background(), crew.Inputs{
		consts.Input_Ticket:  "AAPL",
		consts.Input_DtStart: "2024-01-01",
		consts.Input_DtEnd:   "2024-02-01",
	})
	require.NoError(t, err)

	require.Len(t, result.TasksOutputs, 3)
	assert.Equal(t, consts.Task_GetStockPrice, result.TasksOutputs[0].Name)
	assert.Equal(t, consts.Agent_CrewManager, result.TasksOutputs[0].Agent)
	assert.Equal(t, "manager: Analyze de stock AAPL price history and create a trend analyses of up, down or sideways",
		result.TasksOutputs[0].ExportedOutput)
	assert.Equal(t, result.TasksOutputs[2].ExportedOutput, result.FinalOutput)

	require.Len(t, managerModel.prompts, 3)
	assert.Contains(t, managerModel.prompts[1], "The current date is 01/03/2024.")
	assert.Contains(t, managerModel.prompts[1], "assigned to the Stock News Analyst")
	writePrompt := managerModel.prompts[2]
	assert.Contains(t, writePrompt, result.TasksOutputs[0].ExportedOutput)
	assert.Contains(t, writePrompt, result.TasksOutputs[1].ExportedOutput)
	assert.Contains(t, writePrompt, "about the AAPL company")
	assert.Empty(t, agentModel.prompts)
}

func TestBuildRejectsBadDefinitions(t *testing.T) {
	deps := Deps{Model: &echoModel{}, Prices: nopFetcher{}, News: nopSearcher{}}

	def, err := LoadDefinition()
	require.NoError(t, err)
	def.Agents[0].Tools = []string{"crystal_ball"}
	_, err = Build(context.Background(), def, deps)
	assert.ErrorContains(t, err, "unknown tool")

	def, _ = LoadDefinition()
	def.Tasks[0].Agent = "nobody"
	_, err = Build(context.Background(), def, deps)
	assert.ErrorContains(t, err, "unknown agent")

	def, _ = LoadDefinition()
	_, err = Build(context.Background(), def, Deps{Model: &echoModel{}, News: nopSearcher{}})
	assert.ErrorContains(t, err, "price fetcher is required")

	_, err = Build(context.Background(), def, Deps{})
	assert.Error(t, err)
}
