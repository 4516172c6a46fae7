package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolDelegateWork  = "delegate_work_to_coworker"
	ToolAskQuestion   = "ask_question_to_coworker"
	coworkerParamDesc = "The role of the coworker, must be one of: "
)

type DelegateWorkInput struct {
	Coworker string `json:"coworker"`
	Task     string `json:"task"`
	Context  string `json:"context"`
}

type AskQuestionInput struct {
	Coworker string `json:"coworker"`
	Question string `json:"question"`
	Context  string `json:"context"`
}

// delegationTools lets an agent hand work to coworkers. Coworkers run without
// delegation tools of their own.
func (r *run) delegationTools(coworkers []*boundAgent) []tool.BaseTool {
	names := coworkerList(coworkers)

	delegate := t_utils.NewTool(&schema.ToolInfo{
		Name: ToolDelegateWork,
		Desc: fmt.Sprintf("Delegate a specific task to one of the following coworkers: %s. "+
			"The input should include the coworker, the task to execute and all the context needed, "+
			"they know nothing about the task so share absolutely everything you know.", names),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"coworker": {Type: schema.String, Desc: coworkerParamDesc + names, Required: true},
			"task":     {Type: schema.String, Desc: "The task to delegate", Required: true},
			"context":  {Type: schema.String, Desc: "All the context needed to execute the task"},
		}),
	}, func(ctx context.Context, in DelegateWorkInput) (string, error) {
		return r.delegate(ctx, coworkers, in.Coworker, taskPrompt{
			description: in.Task,
			context:     in.Context,
		})
	})

	ask := t_utils.NewTool(&schema.ToolInfo{
		Name: ToolAskQuestion,
		Desc: fmt.Sprintf("Ask a specific question to one of the following coworkers: %s. "+
			"The input should include the coworker, the question and all the context needed, "+
			"they know nothing about the question so share absolutely everything you know.", names),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"coworker": {Type: schema.String, Desc: coworkerParamDesc + names, Required: true},
			"question": {Type: schema.String, Desc: "The question to ask", Required: true},
			"context":  {Type: schema.String, Desc: "All the context needed to answer the question"},
		}),
	}, func(ctx context.Context, in AskQuestionInput) (string, error) {
		return r.delegate(ctx, coworkers, in.Coworker, taskPrompt{
			description: in.Question,
			context:     in.Context,
		})
	})

	return []tool.BaseTool{delegate, ask}
}

// delegate runs the named coworker. An unknown coworker is reported back to
// the calling model instead of failing the run.
func (r *run) delegate(ctx context.Context, coworkers []*boundAgent, name string, p taskPrompt) (string, error) {
	target := findCoworker(coworkers, name)
	if target == nil {
		return fmt.Sprintf("Error executing tool. coworker mentioned not found, it must be one of the following options:\n- %s",
			strings.Join(strings.Split(coworkerList(coworkers), ", "), "\n- ")), nil
	}
	if target.src.Memory {
		p.memory = r.memory[target.src]
	}
	r.crew.logger.Info("delegating", "run_id", runIDFromContext(ctx), "coworker", target.role)
	return r.execute(ctx, target, p, nil)
}

func findCoworker(coworkers []*boundAgent, name string) *boundAgent {
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
	for _, c := range coworkers {
		if strings.ToLower(c.role) == name {
			return c
		}
	}
	return nil
}
