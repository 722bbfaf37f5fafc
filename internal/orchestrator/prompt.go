package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"fortec-chat-go/internal/model"
)

const (
	webSearchPrefix = "web search:"
	researchPrefix  = "research:"

	webSearchLabel = "Web search: "
	researchLabel  = "Research: "
)

const researchInstructions = `
<instructions>
This is a research query. Please provide an in-depth analysis with:
- Comprehensive investigation of the topic
- Multiple perspectives and schools of thought
- Historical context and development
- Current state of research/knowledge
- Limitations and gaps in current understanding
- Citations to notable research or authorities where appropriate
- Structure your response as an academic research summary
</instructions>
`

const webSearchInstructions = `
<instructions>
You are being provided with search results for the query: "%s"

%s

Based on ONLY the search results above:
1. Synthesize a comprehensive summary that captures the key information
2. Structure your response with clear headings and organized content
3. Include specific facts, figures, and quotes from the search results
4. Cite sources using [Source: example.com] format when referencing specific information
5. If the search results don't fully answer the query, acknowledge the limitations
6. Format your response in an easy-to-read style with paragraphs, bullet points, or lists as appropriate

Respond in a helpful, informative manner that directly addresses the user's query.
DO NOT make up information or include details not found in the search results.
DO NOT include phrases like "Based on the search results" or "According to the provided information".
</instructions>
`

const responseWrapper = `
%s
<response>
Respond directly to the query: "%s"

Your response should be well-structured, informative, and conversational.
</response>`

var (
	wrapperMarkers = regexp.MustCompile(`</?(response|instructions)>`)
	hedgeBasedOn   = regexp.MustCompile(`(?i)^Based on the search results,?\s*`)
	hedgeAccording = regexp.MustCompile(`(?i)^According to the (provided|search|given) (information|results),?\s*`)
)

// classify 解析输入前缀。带前缀时返回强制的模式和去掉前缀的查询。
func classify(raw string, current Mode) (mode Mode, query string, forced bool) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, webSearchPrefix):
		return ModeWebSearch, strings.TrimSpace(trimmed[len(webSearchPrefix):]), true
	case strings.HasPrefix(lower, researchPrefix):
		return ModeResearch, strings.TrimSpace(trimmed[len(researchPrefix):]), true
	}
	return current, trimmed, false
}

// userContent 是写入日志的用户消息内容，记录了本轮的模式。
func userContent(mode Mode, query string) string {
	switch mode {
	case ModeWebSearch:
		return webSearchLabel + query
	case ModeResearch:
		return researchLabel + query
	}
	return query
}

// formatResults 把搜索结果拼成带分隔符的文本块，没有结果时为空。
func formatResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("RESULT %d:\nTitle: %s\nURL: %s\nSource: %s\nSnippet: %s\n", i+1, r.Title, r.Link, r.Source, r.Snippet))
	}
	return "\n<search_results>\n" + strings.Join(blocks, "\n") + "\n</search_results>\n"
}

// historyTurns 把日志回放为对话，跳过 skipID 对应的消息。
func historyTurns(history []model.Message, skipID string) []model.Turn {
	turns := make([]model.Turn, 0, len(history)+3)
	for _, m := range history {
		if m.ID == skipID {
			continue
		}
		turns = append(turns, model.Turn{Content: m.Content, IsUser: m.IsUser})
	}
	return turns
}

// directTurns 用于没有搜索和思考阶段的轮次：历史 + 用户消息，研究模式再追加一条临时指令。
func directTurns(history []model.Message, pending model.Message, mode Mode) []model.Turn {
	turns := historyTurns(history, pending.ID)
	turns = append(turns, model.Turn{Content: pending.Content, IsUser: true})
	if mode == ModeResearch {
		turns = append(turns, model.Turn{Content: researchInstructions})
	}
	return turns
}

// finalTurns 用于搜索或思考之后的轮次：历史 + 用户消息 + 搜索结果 + 包裹后的最终指令。
func finalTurns(history []model.Message, pending model.Message, mode Mode, query string, results []model.SearchResult) []model.Turn {
	turns := historyTurns(history, pending.ID)
	turns = append(turns, model.Turn{Content: pending.Content, IsUser: true})

	var instructions string
	switch mode {
	case ModeWebSearch:
		resultsText := formatResults(results)
		if resultsText != "" {
			turns = append(turns, model.Turn{Content: resultsText})
		}
		instructions = fmt.Sprintf(webSearchInstructions, query, resultsText)
	case ModeResearch:
		instructions = researchInstructions
	}

	target := strings.TrimPrefix(pending.Content, webSearchLabel)
	turns = append(turns, model.Turn{Content: fmt.Sprintf(responseWrapper, instructions, target)})
	return turns
}

// cleanReply 去掉残留的包裹标记和套话开头。
func cleanReply(text string) string {
	text = wrapperMarkers.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = hedgeBasedOn.ReplaceAllString(text, "")
	text = hedgeAccording.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
