package config

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ExtractionModelName is the Gemini model used for document extraction.
const ExtractionModelName = "gemini-1.5-pro-latest"

var genaiClient *genai.Client

func GetGenAIClient() *genai.Client {
	return genaiClient
}

// ExtractionEnabled reports whether the AI document search feature is usable.
// A missing GEMINI_API_KEY disables the feature; it never fails startup.
func ExtractionEnabled() bool {
	return genaiClient != nil
}

func ConnectGenAI() {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		log.Printf("GEMINI_API_KEY not set; AI document search disabled")
		return
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		log.Printf("failed to init gemini client: %v; AI document search disabled", err)
		return
	}
	genaiClient = client
}
