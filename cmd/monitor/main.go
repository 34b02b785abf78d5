package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/room4-2/aasha/messages"
	"github.com/room4-2/aasha/session"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// serverMessage mirrors messages.ServerMessage with the payload left raw.
type serverMessage struct {
	Type    string          `json:"type"`
	CallID  string          `json:"callId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/monitor", "Monitor WebSocket URL")
	phone := flag.String("phone", "", "Only show calls from this number")
	flag.Parse()

	log.Printf("🔌 Connecting to %s...", *serverURL)

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("✅ Connected!")

	if *phone != "" {
		if err := conn.WriteJSON(messages.ClientMessage{Type: messages.TypeFilter, Phone: *phone}); err != nil {
			log.Fatalf("Failed to set filter: %v", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}

			var msg serverMessage
			if err := sonic.Unmarshal(data, &msg); err != nil {
				log.Println("Parse error:", err)
				continue
			}

			switch msg.Type {
			case messages.TypeSnapshot:
				var snap session.Snapshot
				if err := sonic.Unmarshal(msg.Payload, &snap); err != nil {
					log.Println("Parse error:", err)
					continue
				}
				printSnapshot(snap)

			case messages.TypeStatus:
				var payload messages.StatusPayload
				_ = sonic.Unmarshal(msg.Payload, &payload)
				log.Printf("📊 Status: %s %s (%d active calls)", payload.Status, payload.Message, payload.Calls)

			case messages.TypeError:
				log.Printf("❌ Error: %s", string(msg.Payload))
			}
		}
	}()

	select {
	case <-done:
		log.Println("Connection closed")
	case <-interrupt:
		log.Println("\n👋 Interrupted, closing...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
}

func printSnapshot(snap session.Snapshot) {
	var slots []string
	for _, name := range session.SlotOrder {
		slot := snap.RequiredInfo[name]
		if slot.Obtained && slot.Value != nil {
			slots = append(slots, fmt.Sprintf("%s=%s", name, *slot.Value))
		} else {
			slots = append(slots, fmt.Sprintf("%s=?", name))
		}
	}

	flags := ""
	if snap.DispatchedAt != nil {
		flags += " 🚨 dispatched " + snap.DispatchedAt.Format(time.Kitchen)
	}
	if snap.Ended {
		flags += " 📴 ended"
	}

	fmt.Printf("[%s] %s %-21s lang=%-2s q=%d %s%s\n",
		shortID(snap.CallID), snap.PhoneNumber, snap.Stage, snap.Language,
		snap.QuestionsAsked, strings.Join(slots, " "), flags)
}

func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
