package config

type AssistantConfig interface {
	GetGenAIAPIKey() string
	GetAssistantModel() string
	GetAssistantPrompt() string
}

const defaultAssistantPrompt = "Give me one short, practical study tip for a student preparing for an exam. " +
	"Answer in two sentences at most."

type Assistant struct{}

var _ AssistantConfig = Assistant{}

func (Assistant) GetGenAIAPIKey() string {
	return GetEnv("GENAI_API_KEY", "")
}

func (Assistant) GetAssistantModel() string {
	return GetEnv("ASSISTANT_MODEL", "gemini-2.0-flash")
}

func (Assistant) GetAssistantPrompt() string {
	return GetEnv("ASSISTANT_PROMPT", defaultAssistantPrompt)
}
