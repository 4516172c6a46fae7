package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const (
	managerGoal = "Manage the team to complete the task in the best way possible."

	managerBackstory = `You are a seasoned manager with a knack for getting the best out of your team.
You are also known for your ability to delegate work to the right people, and to ask the right questions to get the best out of your team.
Even though you don't perform tasks by yourself, you have a lot of experience in the field, which allows you to properly evaluate the work of your team members.`

	forceFinalAnswerPrompt = "Now it's time you MUST give your absolute best final answer. " +
		"You'll ignore all previous instructions, stop using any tools, and just return your absolute BEST Final answer."
)

// render fills {name} placeholders from the kickoff inputs.
func render(ctx context.Context, tpl string, in Inputs) (string, error) {
	tpl = strings.TrimSpace(tpl)
	if !strings.Contains(tpl, "{") {
		return tpl, nil
	}
	vars := make(map[string]any, len(in))
	for k, v := range in {
		vars[k] = v
	}
	msgs, err := prompt.FromMessages(schema.FString, schema.UserMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("template rendered no message")
	}
	return msgs[0].Content, nil
}

func systemPrompt(a *boundAgent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.", a.role)
	if a.backstory != "" {
		sb.WriteString(" ")
		sb.WriteString(a.backstory)
	}
	if a.goal != "" {
		sb.WriteString("\nYour personal goal is: ")
		sb.WriteString(a.goal)
	}
	return sb.String()
}

type taskPrompt struct {
	description string
	expected    string
	context     string
	memory      []string
	hint        string
}

func (p taskPrompt) String() string {
	var sb strings.Builder
	sb.WriteString("Current Task: ")
	sb.WriteString(p.description)
	if p.expected != "" {
		sb.WriteString("\n\nThis is the expect criteria for your final answer: ")
		sb.WriteString(p.expected)
		sb.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	}
	if p.hint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(p.hint)
	}
	if p.context != "" {
		sb.WriteString("\n\nThis is the context you're working with:\n")
		sb.WriteString(p.context)
	}
	if len(p.memory) > 0 {
		sb.WriteString("\n\nThis is what you already produced earlier in this run:\n")
		sb.WriteString(strings.Join(p.memory, contextSeparator))
	}
	sb.WriteString("\n\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!")
	return sb.String()
}

func coworkerList(coworkers []*boundAgent) string {
	roles := make([]string, 0, len(coworkers))
	for _, c := range coworkers {
		roles = append(roles, c.role)
	}
	return strings.Join(roles, ", ")
}
