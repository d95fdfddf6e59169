package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/visibly-ai/visibly-workflows/internal/config"
	"github.com/visibly-ai/visibly-workflows/services"
)

// Smoke-tests each configured provider adapter with one real call. Run it
// locally with a populated .env before trusting a new provider key or model
// name in production.
func main() {
	fmt.Println("AI Provider Test Script")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	} else {
		fmt.Println("Loaded .env file")
	}

	cfg := config.Load()
	costService := services.NewCostService()

	prompt := "What are the best project management tools for small teams?"

	for _, name := range []string{"openai", "anthropic", "perplexity"} {
		testProvider(name, cfg, costService, prompt)
	}
}

func testProvider(name string, cfg *config.Config, costService services.CostService, prompt string) {
	fmt.Printf("\nTesting provider: %s\n", name)

	provider, err := services.NewProvider(name, cfg, costService)
	if err != nil {
		fmt.Printf("  Failed to create provider: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	start := time.Now()
	answer, err := provider.Answer(ctx, prompt)
	if err != nil {
		fmt.Printf("  Call failed: %v\n", err)
		return
	}

	fmt.Printf("  Answer length: %d characters\n", len(answer.Text))
	fmt.Printf("  Sources: %d\n", len(answer.Sources))
	fmt.Printf("  Tokens: %d in / %d out\n", answer.InputTokens, answer.OutputTokens)
	fmt.Printf("  Cost: $%.4f\n", answer.Cost)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))
}
