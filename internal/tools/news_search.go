package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
)

const NewsSearchToolName = "news_search"

type NewsSearchInput struct {
	Query string `json:"query"`
}

func NewNewsSearchTool(searcher dataflows.NewsSearcher) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: NewsSearchToolName,
			Desc: "Search the latest news for a stock ticker or company. Returns up to 10 results with headline, snippet, source and link.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "The search query, e.g. the ticker symbol",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input NewsSearchInput) (string, error) {
			query := strings.TrimSpace(input.Query)
			if query == "" {
				query = crew.InputsFromContext(ctx)[consts.Input_Ticket]
			}
			items, err := searcher.Search(ctx, query)
			if err != nil {
				return "", err
			}
			return formatNews(query, items), nil
		},
	)
}

func formatNews(query string, items []*dataflows.NewsItem) string {
	if len(items) == 0 {
		return fmt.Sprintf("No news found for %s.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "News results for %s:\n", query)
	for i, item := range items {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, item.Title)
		if item.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", item.Snippet)
		}
		if item.Source != "" || !item.PublishedAt.IsZero() {
			sb.WriteString("   ")
			if item.Source != "" {
				sb.WriteString(item.Source)
			}
			if !item.PublishedAt.IsZero() {
				if item.Source != "" {
					sb.WriteString(", ")
				}
				sb.WriteString(item.PublishedAt.Format(consts.DateLayout))
			}
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "   link: %s\n", item.URL)
	}
	return sb.String()
}
