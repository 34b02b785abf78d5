// Command simulate runs a call through the dialogue from the terminal, typing
// what the caller would say. It loads the server's configuration and uses the
// real Gemini client with an in-memory session store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/room4-2/aasha/config"
	"github.com/room4-2/aasha/dialogue"
	"github.com/room4-2/aasha/gemini"
	"github.com/room4-2/aasha/session"
)

func main() {
	phone := flag.String("from", "+910000000000", "Caller phone number")
	digits := flag.String("lang", "1", "Language menu digit (1 English, anything else Hindi)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	llm, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Timeout:     cfg.LLMTimeout,
		MaxAttempts: cfg.LLMMaxAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	store := session.NewManagerWithClient(cfg, nil)
	defer store.Shutdown()
	router := dialogue.NewRouter(store, dialogue.NewClassifier(llm), dialogue.NewComposer(llm)).
		WithTurnBudget(cfg.TurnBudget)

	turn(ctx, router, *phone, dialogue.Event{Kind: dialogue.EventCallStarted})
	fmt.Printf("☎️  (pressing %q)\n", *digits)
	reply := turn(ctx, router, *phone, dialogue.Event{Kind: dialogue.EventLanguageChosen, Digits: *digits})

	in := bufio.NewScanner(os.Stdin)
	for {
		if reply.Gather != nil {
			fmt.Print("🗣️  caller> ")
			if !in.Scan() {
				break
			}
			if text := strings.TrimSpace(in.Text()); text != "" {
				reply = turn(ctx, router, *phone, dialogue.Event{Kind: reply.Gather.Next, Transcript: text})
				continue
			}
			// Silence: the gather times out and the rest of the reply plays.
			speak(reply.AfterGather)
		}
		if reply.Hangup || reply.Redirect == "" {
			break
		}
		reply = turn(ctx, router, *phone, dialogue.Event{Kind: reply.Redirect})
	}

	fmt.Println("📴 Call ended")
	if snap, ok := store.Snapshot(ctx, *phone); ok {
		for _, name := range session.SlotOrder {
			slot := snap.RequiredInfo[name]
			value := "-"
			if slot.Value != nil {
				value = *slot.Value
			}
			fmt.Printf("   %-17s %v %s\n", name, slot.Obtained, value)
		}
	}
}

func turn(ctx context.Context, router *dialogue.Router, phone string, ev dialogue.Event) dialogue.Reply {
	reply, err := router.Handle(ctx, phone, ev)
	if err != nil && !errors.Is(err, dialogue.ErrUnexpectedEvent) {
		log.Printf("❌ %s turn failed: %v", ev.Kind, err)
	}
	speak(reply.Say)
	if reply.Gather != nil && reply.Gather.Prompt != nil {
		speak([]dialogue.Utterance{*reply.Gather.Prompt})
	}
	return reply
}

func speak(utterances []dialogue.Utterance) {
	for _, u := range utterances {
		fmt.Printf("🤖 [%s] %s\n", u.Language.Code(), u.Text)
	}
}
