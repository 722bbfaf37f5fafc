package model

// Backend 标识模型使用哪一种补全后端。
type Backend string

const (
	// BackendChat 结构化聊天补全接口，发送完整的角色对话。
	BackendChat Backend = "chat"
	// BackendGenerate 单轮直接生成接口，只发送最新的用户消息。
	BackendGenerate Backend = "generate"
	// BackendText 纯文本生成接口，其余模型都走这里。
	BackendText Backend = "text"
)

// DefaultModelID 是新会话使用的模型。
const DefaultModelID = "mistral"

// ModelConfig 是模型目录中的一项，进程启动时加载，只读。
type ModelConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Alias       string  `json:"alias"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	Icon        string  `json:"icon"`
	Backend     Backend `json:"backend"`
}

var catalog = []ModelConfig{
	{ID: "llama-3.3-70b-versatile", Name: "LLaMA-3 70B", Alias: "llama-3.3-70b-versatile", MaxTokens: 4096, Temperature: 0.7, Icon: "/icons/meta.svg", Backend: BackendChat},
	{ID: "qwen-coder", Name: "Qwen 2.5 Coder 32B", Alias: "qwen2.5-coder-32b-instruct", MaxTokens: 8192, Temperature: 0.7, Icon: "/icons/qwen.svg", Backend: BackendChat},
	{ID: "gemini-2.0-flash", Name: "Gemini 2 Flash", Alias: "gemini-2.0-flash", MaxTokens: 8192, Temperature: 0.7, Icon: "/icons/gemini.svg", Backend: BackendGenerate},
	{ID: "openai-large", Name: "OpenAI GPT-4.1 (Full Version)", Alias: "gpt-4.1", MaxTokens: 32768, Temperature: 0.7, Icon: "/icons/openai.svg", Backend: BackendText},
	{ID: "openai-fast", Name: "OpenAI GPT-4.1 Nano", Alias: "gpt-4.1-nano", MaxTokens: 32768, Temperature: 0.7, Icon: "/icons/openai.svg", Backend: BackendText},
	{ID: "deepseek-reasoning", Name: "DeepSeek Reasoning R1", Alias: "deepseek-r1-0528", MaxTokens: 16384, Temperature: 0.7, Icon: "/icons/deepseek.svg", Backend: BackendText},
	{ID: "openai-reasoning", Name: "OpenAI O3 Reasoning", Alias: "o3", MaxTokens: 32768, Temperature: 0.7, Icon: "/icons/openai.svg", Backend: BackendText},
	{ID: "mistral", Name: "Mistral Small 3.1 24B", Alias: "mistral-small-3.1-24b-instruct", MaxTokens: 16384, Temperature: 0.7, Icon: "/icons/mistral.svg", Backend: BackendText},
}

var catalogByID = func() map[string]ModelConfig {
	m := make(map[string]ModelConfig, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// Catalog 返回模型目录的副本，顺序与展示顺序一致。
func Catalog() []ModelConfig {
	out := make([]ModelConfig, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel 按模型 ID 查找目录项。
func LookupModel(id string) (ModelConfig, bool) {
	c, ok := catalogByID[id]
	return c, ok
}
