// Command callcentre runs an interactive call-centre session against the
// OpenAI backend. Plain text starts a new turn; "reset" reinitializes the
// session, "clear" wipes the screen and "exit" quits.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hupe1980/callcentre"
	"github.com/hupe1980/callcentre/logging"
	"github.com/hupe1980/callcentre/model/openai"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	var logger logging.Logger = logging.NoOpLogger{}
	if os.Getenv("CALLCENTRE_DEBUG") != "" {
		logger = logging.NewSlogLogger(logging.LogLevelDebug, "text", os.Stderr)
	}
	centreLoop(logger)
}

func centreLoop(logger logging.Logger) {
	llm := openai.NewModel()

	centre, err := callcentre.New(llm, func(o *callcentre.Options) {
		o.Logger = logger
	})
	if err != nil {
		log.Fatalf("setup failed: %v", err)
	}

	answer := color.New(color.FgHiGreen)
	failure := color.New(color.FgHiMagenta)
	meta := color.New(color.FgHiBlack)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}

		switch prompt {
		case "exit":
			return
		case "clear":
			clearScreen()
			continue
		case "reset":
			clearScreen()
			centre.Reset()
			continue
		}

		fmt.Println()
		result, err := centre.AskStream(context.Background(), prompt, func(delta string) {
			answer.Print(delta)
		})
		if err != nil {
			failure.Printf("Error: %v\n", err)
			continue
		}

		usage := result.Usage
		fmt.Println()
		meta.Printf("[%s | requests=%d tokens=%d]\n\n", result.Specialist, usage.Requests, usage.TotalTokens)
	}
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}
