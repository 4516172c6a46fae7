package analyzer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"gopkg.in/yaml.v3"

	"github.com/dyike/StockAnalyzerAI/config"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
	"github.com/dyike/StockAnalyzerAI/internal/llm"
	"github.com/dyike/StockAnalyzerAI/internal/tools"
)

//go:embed crew.yaml
var crewYAML []byte

const (
	toolStockPrice = "stock_price"
	toolNewsSearch = "news_search"
)

type AgentDef struct {
	ID              string   `yaml:"id"`
	Role            string   `yaml:"role"`
	Goal            string   `yaml:"goal"`
	Backstory       string   `yaml:"backstory"`
	MaxIter         int      `yaml:"max_iter"`
	Memory          bool     `yaml:"memory"`
	AllowDelegation bool     `yaml:"allow_delegation"`
	Tools           []string `yaml:"tools"`
}

type TaskDef struct {
	Name           string   `yaml:"name"`
	Agent          string   `yaml:"agent"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Context        []string `yaml:"context"`
}

// Definition is the stock analysis crew as declared in crew.yaml.
type Definition struct {
	Process string     `yaml:"process"`
	MaxIter int        `yaml:"max_iter"`
	Agents  []AgentDef `yaml:"agents"`
	Tasks   []TaskDef  `yaml:"tasks"`
}

func LoadDefinition() (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(crewYAML, &def); err != nil {
		return nil, fmt.Errorf("failed to parse crew definition: %w", err)
	}
	return &def, nil
}

// Deps are the collaborators the crew is wired to.
type Deps struct {
	Model        model.ToolCallingChatModel
	ManagerModel model.ToolCallingChatModel
	Prices       dataflows.PriceFetcher
	News         dataflows.NewsSearcher
	Verbose      bool
	Logger       *slog.Logger
	Now          func() time.Time
}

// Build turns def into a runnable crew. All agents share deps.Model.
func Build(ctx context.Context, def *Definition, deps Deps) (*crew.Crew, error) {
	if deps.Model == nil {
		return nil, errors.New("chat model is required")
	}
	registry := map[string]func() (tool.BaseTool, error){
		toolStockPrice: func() (tool.BaseTool, error) {
			if deps.Prices == nil {
				return nil, errors.New("price fetcher is required")
			}
			return tools.NewStockPriceTool(deps.Prices), nil
		},
		toolNewsSearch: func() (tool.BaseTool, error) {
			if deps.News == nil {
				return nil, errors.New("news searcher is required")
			}
			return tools.NewNewsSearchTool(deps.News), nil
		},
	}

	agents := make(map[string]*crew.Agent, len(def.Agents))
	ordered := make([]*crew.Agent, 0, len(def.Agents))
	for _, ad := range def.Agents {
		if _, dup := agents[ad.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", ad.ID)
		}
		a := &crew.Agent{
			Role:            ad.Role,
			Goal:            ad.Goal,
			Backstory:       ad.Backstory,
			Model:           deps.Model,
			MaxIter:         ad.MaxIter,
			Memory:          ad.Memory,
			AllowDelegation: ad.AllowDelegation,
		}
		for _, name := range ad.Tools {
			newTool, ok := registry[name]
			if !ok {
				return nil, fmt.Errorf("agent %s: unknown tool %q", ad.ID, name)
			}
			t, err := newTool()
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", ad.ID, err)
			}
			a.Tools = append(a.Tools, t)
		}
		agents[ad.ID] = a
		ordered = append(ordered, a)
	}

	tasks := make(map[string]*crew.Task, len(def.Tasks))
	orderedTasks := make([]*crew.Task, 0, len(def.Tasks))
	for _, td := range def.Tasks {
		agent, ok := agents[td.Agent]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown agent %q", td.Name, td.Agent)
		}
		t := &crew.Task{
			Name:           td.Name,
			Description:    td.Description,
			ExpectedOutput: td.ExpectedOutput,
			Agent:          agent,
		}
		for _, dep := range td.Context {
			ctxTask, ok := tasks[dep]
			if !ok {
				return nil, fmt.Errorf("task %s: context task %q must be declared before it", td.Name, dep)
			}
			t.Context = append(t.Context, ctxTask)
		}
		tasks[td.Name] = t
		orderedTasks = append(orderedTasks, t)
	}

	managerModel := deps.ManagerModel
	if managerModel == nil {
		managerModel = deps.Model
	}
	return crew.New(ctx, &crew.Config{
		Name:         "stock_analyzer",
		Agents:       ordered,
		Tasks:        orderedTasks,
		Process:      crew.Process(def.Process),
		ManagerModel: managerModel,
		MaxIter:      def.MaxIter,
		Verbose:      deps.Verbose,
		Logger:       deps.Logger,
		Now:          deps.Now,
	})
}

// New wires the stock analysis crew from cfg: chat models for agents and the
// manager, the configured market data provider and the news backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*crew.Crew, error) {
	def, err := LoadDefinition()
	if err != nil {
		return nil, err
	}
	chatModel, err := llm.NewChatModel(ctx, cfg, cfg.Model)
	if err != nil {
		return nil, err
	}
	managerModel, err := llm.NewChatModel(ctx, cfg, cfg.ManagerModel)
	if err != nil {
		return nil, err
	}
	prices, err := dataflows.NewPriceFetcher(cfg)
	if err != nil {
		return nil, err
	}
	return Build(ctx, def, Deps{
		Model:        chatModel,
		ManagerModel: managerModel,
		Prices:       prices,
		News:         dataflows.NewNewsSearcher(cfg),
		Verbose:      cfg.Verbose,
		Logger:       logger,
	})
}
