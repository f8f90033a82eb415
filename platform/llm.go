package platform

import (
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	LLMClient *openai.Client
)

// Model names are overridable per deployment; defaults match the hosted setup.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func AgentModel() string {
	return envOr("AGENT_MODEL", "gpt-4o")
}

func GuardrailModel() string {
	return envOr("GUARDRAIL_MODEL", "gpt-4o-mini")
}

func VisionModel() string {
	return envOr("VISION_MODEL", "gpt-4o")
}

func EmbeddingModel() string {
	return envOr("EMBEDDING_MODEL", "text-embedding-3-small")
}

func RealtimeModel() string {
	return envOr("REALTIME_MODEL", "gpt-4o-realtime-preview")
}

func InitLLMClient() {
	LLMClient = openai.NewClient(
		option.WithBaseURL(os.Getenv("LLM_BASE_URL")),
		option.WithAPIKey(os.Getenv("LLM_API_KEY")),
	)
}
