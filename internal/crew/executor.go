package crew

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// run carries what one task execution needs from the graph state.
type run struct {
	crew   *Crew
	agents map[*Agent]*boundAgent
	memory map[*Agent][]string
}

// executeTask runs task with its bound agent, or with the manager in
// hierarchical mode. It returns the agent that produced the output.
func (r *run) executeTask(ctx context.Context, task *Task, description, expected, taskContext string) (*boundAgent, string, error) {
	p := taskPrompt{
		description: description,
		expected:    expected,
		context:     taskContext,
	}

	if r.crew.process == ProcessHierarchical {
		manager := r.agents[r.crew.manager]
		if owner := r.agents[task.Agent]; owner != nil {
			p.hint = fmt.Sprintf("This task is assigned to the %s. Delegate it to them, or to another coworker when more suitable, and review their answer before giving your final answer.", owner.role)
		}
		out, err := r.execute(ctx, manager, p, r.coworkers(nil))
		return manager, out, err
	}

	agent := r.agents[task.Agent]
	if agent.src.Memory {
		p.memory = r.memory[agent.src]
	}
	var coworkers []*boundAgent
	if agent.src.AllowDelegation {
		coworkers = r.coworkers(agent.src)
	}
	out, err := r.execute(ctx, agent, p, coworkers)
	return agent, out, err
}

// coworkers lists the crew agents other than self, in declared order.
func (r *run) coworkers(self *Agent) []*boundAgent {
	var out []*boundAgent
	for _, a := range r.crew.agents {
		if a == self {
			continue
		}
		if b := r.agents[a]; b != nil {
			out = append(out, b)
		}
	}
	return out
}

// execute runs a single agent to a final answer. Agents without tools get one
// model call, agents with tools run an eino ReAct loop capped by MaxIter.
func (r *run) execute(ctx context.Context, agent *boundAgent, p taskPrompt, coworkers []*boundAgent) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt(agent)),
		schema.UserMessage(p.String()),
	}

	tools := append([]tool.BaseTool(nil), agent.src.Tools...)
	if len(coworkers) > 0 {
		tools = append(tools, r.delegationTools(coworkers)...)
	}

	logger := r.crew.logger.With("run_id", runIDFromContext(ctx), "agent", agent.role)
	logger.Debug("agent started", "tools", len(tools))

	if len(tools) == 0 {
		resp, err := agent.src.Model.Generate(ctx, msgs)
		if err != nil {
			return "", fmt.Errorf("agent %s: %w", agent.role, err)
		}
		return finalAnswer(resp.Content), nil
	}

	maxIter := agent.src.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	// transcript holds the conversation as of the latest model call.
	var transcript []*schema.Message
	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: agent.src.Model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
		MaxStep:               2*maxIter + 1,
		StreamToolCallChecker: toolCallChecker,
		MessageModifier: func(_ context.Context, input []*schema.Message) []*schema.Message {
			transcript = input
			return input
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create agent %s: %w", agent.role, err)
	}
	resp, err := reactAgent.Generate(ctx, msgs)
	if errors.Is(err, compose.ErrExceedMaxSteps) {
		logger.Warn("agent reached max iterations, forcing final answer", "max_iter", maxIter)
		resp, err = forceFinalAnswer(ctx, agent, transcript, msgs)
	}
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", agent.role, err)
	}
	logger.Debug("agent finished", "output_len", len(resp.Content))
	return finalAnswer(resp.Content), nil
}

// forceFinalAnswer asks the model, without tools, for a final answer built
// from what the agent gathered before hitting its iteration cap.
func forceFinalAnswer(ctx context.Context, agent *boundAgent, transcript, initial []*schema.Message) (*schema.Message, error) {
	if len(transcript) == 0 {
		transcript = initial
	}
	msgs := append(slices.Clone(transcript), schema.UserMessage(forceFinalAnswerPrompt))
	return agent.src.Model.Generate(ctx, msgs)
}

// finalAnswer drops a leading "Final Answer:" marker models tend to echo.
func finalAnswer(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "Final Answer:"); i >= 0 {
		content = strings.TrimSpace(content[i+len("Final Answer:"):])
	}
	return content
}

func toolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
