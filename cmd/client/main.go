// Command client is a terminal participant for the relay, handy for
// trying a room from several shells in different languages.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"polyglot-chat/domain"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayURL string `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	Name     string `envconfig:"CLIENT_NAME" required:"true"`
	Lang     string `envconfig:"CLIENT_LANG" default:"en"`
	Colours  bool   `envconfig:"CLIENT_COLOURS" default:"true"`
}

// outbound is the union of every frame the relay writes.
type outbound struct {
	Type           string `json:"type"`
	Msg            string `json:"msg"`
	From           string `json:"from"`
	Text           string `json:"text"`
	FromLang       string `json:"from_lang"`
	TranslatedText string `json:"translated_text"`
	ToLang         string `json:"to_lang"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !config.Colours {
		color.Disable()
	}

	conn, _, err := websocket.DefaultDialer.Dial(config.RelayURL, nil)
	if err != nil {
		log.Fatalf("Failed to reach relay at %s: %v", config.RelayURL, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{
		"type": domain.FrameJoin, "name": config.Name, "lang": config.Lang,
	}); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				color.Red.Printf("connection closed: %v\n", err)
				return
			}
			var frame outbound
			if err := json.Unmarshal(raw, &frame); err != nil {
				continue
			}
			fmt.Println(render(frame))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"type": domain.FrameMessage, "text": line}); err != nil {
				color.Red.Printf("send failed: %v\n", err)
				return
			}
		}
	}
}

func render(frame outbound) string {
	switch frame.Type {
	case domain.FrameSystem:
		return color.Gray.Sprintf("* %s", frame.Msg)
	case domain.FrameChat:
		line := fmt.Sprintf("%s: %s", color.Cyan.Sprint(frame.From), frame.TranslatedText)
		if frame.FromLang != frame.ToLang {
			line += color.Gray.Sprintf("  (%s: %s)", frame.FromLang, frame.Text)
		}
		return line
	case domain.FrameAIChat:
		return fmt.Sprintf("%s %s\n  %s", color.Magenta.Sprint(frame.From),
			color.Gray.Sprintf("re: %s", frame.Text), frame.TranslatedText)
	default:
		return frame.Type
	}
}
