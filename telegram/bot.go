package telegram

import (
	"evpilot/internal"
	"fmt"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"log"
	"strings"
	"sync"
)

const recentEventsKept = 10

// TgBot implements EventHandler
type TgBot struct {
	api         *tgbotapi.BotAPI
	mu          sync.Mutex
	subscribers map[int64]string
	recent      []string
	event       chan MessageContent
	send        chan MessageContent
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string) (*TgBot, error) {
	tgBot := &TgBot{
		subscribers: make(map[int64]string),
		event:       make(chan MessageContent, 100),
		send:        make(chan MessageContent, 100),
	}
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	return tgBot, nil
}

func (b *TgBot) Start() {
	go b.sendPump()
	go b.eventPump()
	go b.updatesPump()
}

// Start listening for updates
func (b *TgBot) updatesPump() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		log.Printf("bot: error getting updates: %v", err)
		return
	}
	for update := range updates {
		if update.Message == nil {
			continue
		}
		if !update.Message.IsCommand() {
			continue
		}
		switch update.Message.Command() {
		case "start":
			b.mu.Lock()
			b.subscribers[update.Message.Chat.ID] = update.Message.From.UserName
			b.mu.Unlock()
			msg := fmt.Sprintf("Hello *%v*, you are now subscribed to fleet updates", update.Message.From.UserName)
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: msg}
		case "stop":
			b.mu.Lock()
			delete(b.subscribers, update.Message.Chat.ID)
			b.mu.Unlock()
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: "Your subscription has been removed"}
		case "status":
			msg := b.composeStatusMessage()
			b.send <- MessageContent{ChatID: update.Message.Chat.ID, Text: msg}
		}
	}
}

// eventPump sending events to all subscribers
func (b *TgBot) eventPump() {
	for {
		if event, ok := <-b.event; ok {
			b.mu.Lock()
			b.recent = append(b.recent, event.Text)
			if len(b.recent) > recentEventsKept {
				b.recent = b.recent[len(b.recent)-recentEventsKept:]
			}
			chats := make([]int64, 0, len(b.subscribers))
			for chatId := range b.subscribers {
				chats = append(chats, chatId)
			}
			b.mu.Unlock()
			for _, chatId := range chats {
				b.sendMessage(chatId, event.Text)
			}
		}
	}
}

// sendPump sending messages to users
func (b *TgBot) sendPump() {
	for {
		if event, ok := <-b.send; ok {
			b.sendMessage(event.ChatID, event.Text)
		}
	}
}

// sendMessage common routine to send a message via bot API
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		// maybe error was while parsing, so we can send a message about this error
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		_, err = b.api.Send(msg)
		if err != nil {
			log.Printf("bot: error sending message: %v", err)
		}
	}
}

func (b *TgBot) OnStatusNotification(event *internal.EventMessage) {
	if event.ConnectorId == 0 {
		// don`t send status updates for charger itself, only for connectors
		return
	}
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", event.ChargerId, event.ConnectorId, event.Status)
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	b.event <- MessageContent{Text: msg}
}

func (b *TgBot) OnSessionStart(event *internal.EventMessage) {
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", event.ChargerId, event.ConnectorId, event.Status)
	msg += fmt.Sprintf("Session %v START\n", sanitize(event.SessionId))
	b.event <- MessageContent{Text: msg}
}

func (b *TgBot) OnSessionStop(event *internal.EventMessage) {
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", event.ChargerId, event.ConnectorId, event.Status)
	msg += fmt.Sprintf("Session %v STOP\n", sanitize(event.SessionId))
	msg += fmt.Sprintf("Info: %v\n", sanitize(event.Info))
	b.event <- MessageContent{Text: msg}
}

func (b *TgBot) OnAlert(event *internal.EventMessage) {
	msg := fmt.Sprintf("*ALERT* `%v`: %v\n", event.Status, sanitize(event.Info))
	msg += fmt.Sprintf("Gun: %v\n", sanitize(event.ChargerId))
	b.event <- MessageContent{Text: msg}
}

// compose status message
func (b *TgBot) composeStatusMessage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := "Recent events:\n\n"
	for _, event := range b.recent {
		msg += event
		msg += "\n"
	}
	msg += fmt.Sprintf("Active subscriptions: %v", len(b.subscribers))
	return msg
}

func sanitize(input string) string {
	// Define a list of reserved characters that need to be escaped
	reservedChars := "\\`*_{}[]()#+-.!|"

	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}

	return sanitized
}
