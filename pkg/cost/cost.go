// Package cost 根据模型展示名和输入输出文本估算 token 数和费用。
//
// token 数按 ceil(字符数/4) 近似，不是真正的分词器，费用因此也是近似值。
package cost

import "unicode/utf8"

// Rate 是每 1000 token 的单价。
type Rate struct {
	InputPerK  float64
	OutputPerK float64
}

// Result 是一次估算的结果。
type Result struct {
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// DefaultRate 用于价目表中没有的模型。
var DefaultRate = Rate{InputPerK: 0.0001, OutputPerK: 0.0002}

var rates = map[string]Rate{
	"Mistral Small 3.1 24B": {InputPerK: 0.0002, OutputPerK: 0.0006},
	"LLaMA-3 70B":           {InputPerK: 0.0003, OutputPerK: 0.0009},
	"OpenAI GPT-4.1":        {InputPerK: 0.001, OutputPerK: 0.003},
	"DeepSeek Reasoning R1": {InputPerK: 0.0004, OutputPerK: 0.0012},
	"OpenAI O3 Reasoning":   {InputPerK: 0.0015, OutputPerK: 0.0045},
	"Qwen 2.5 Coder 32B":    {InputPerK: 0.0003, OutputPerK: 0.0009},
	"Gemini 2 Flash":        {InputPerK: 0.0001, OutputPerK: 0.0004},
}

// 后端别名到计费展示名的映射。
var billingNames = map[string]string{
	"mistral-small-3.1-24b-instruct": "Mistral Small 3.1 24B",
	"llama-3.3-70b-versatile":        "LLaMA-3 70B",
	"gpt-4.1":                        "OpenAI GPT-4.1",
	"gpt-4.1-nano":                   "OpenAI GPT-4.1",
	"deepseek-r1-0528":               "DeepSeek Reasoning R1",
	"o3":                             "OpenAI O3 Reasoning",
	"qwen2.5-coder-32b-instruct":     "Qwen 2.5 Coder 32B",
	"gemini-2.0-flash":               "Gemini 2 Flash",
}

// EstimateTokens 返回文本的近似 token 数。
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// RateFor 返回模型的单价，未知模型使用 DefaultRate。
func RateFor(displayName string) Rate {
	if r, ok := rates[displayName]; ok {
		return r
	}
	return DefaultRate
}

// Estimate 估算一次调用的 token 数和费用。纯函数，不会失败。
func Estimate(displayName, input, output string) Result {
	in := EstimateTokens(input)
	out := EstimateTokens(output)
	r := RateFor(displayName)
	return Result{
		InputTokens:  in,
		OutputTokens: out,
		Cost:         float64(in)/1000*r.InputPerK + float64(out)/1000*r.OutputPerK,
	}
}

// DisplayName 把后端别名映射为计费展示名；未知别名原样返回。
func DisplayName(alias string) string {
	if name, ok := billingNames[alias]; ok {
		return name
	}
	return alias
}
