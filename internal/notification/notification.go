package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cryptobrain/internal/logging"
)

// Notification is one outbound broadcast message.
type Notification struct {
	Message   string
	Level     string // INFO, SUCCESS, WARNING, ERROR, CRITICAL
	Timestamp time.Time
}

// Notifier is a single delivery channel.
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to all channels through a bounded
// queue and one background worker, so a slow provider can never block
// the engine's tick. When the queue is full the message is dropped.
type Manager struct {
	mu        sync.RWMutex
	notifiers []Notifier
	queue     chan *Notification
	log       *logging.Logger
	stop      chan struct{}
	done      chan struct{}
	started   bool
}

// NewManager creates a manager with the given queue depth.
func NewManager(queueSize int, log *logging.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = logging.Default().WithComponent("notification")
	}
	return &Manager{
		queue: make(chan *Notification, queueSize),
		log:   log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Start launches the delivery worker.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.worker()
}

// Stop drains nothing; it just terminates the worker.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Manager) worker() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case n := <-m.queue:
			m.deliver(n)
		}
	}
}

func (m *Manager) deliver(n *Notification) {
	m.mu.RLock()
	notifiers := make([]Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	for _, nt := range notifiers {
		if !nt.IsEnabled() {
			continue
		}
		if err := nt.Send(n); err != nil {
			m.log.Warn("notification delivery failed", "provider", nt.Name(), "error", err)
		}
	}
}

// Notify enqueues a message without blocking; it satisfies the
// engine's notifier contract.
func (m *Manager) Notify(message, level string) {
	n := &Notification{Message: message, Level: level, Timestamp: time.Now()}
	select {
	case m.queue <- n:
	default:
		m.log.Debug("notification queue full, dropping", "level", level)
	}
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends broadcasts via the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
	baseURL  string
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://api.telegram.org",
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// levelEmoji mirrors the dashboard's log color coding.
func levelEmoji(level string) string {
	switch level {
	case "SUCCESS":
		return "\U0001F7E2"
	case "ERROR", "CRITICAL":
		return "\U0001F534"
	case "WARNING":
		return "⚠️"
	default:
		return "ℹ️"
	}
}

func (t *TelegramNotifier) Send(n *Notification) error {
	if !t.enabled {
		return nil
	}

	emoji := levelEmoji(n.Level)
	text := fmt.Sprintf("%s *CRYPTOBRAIN INTEL* %s\n\n%s\n\n_Time: %s_",
		emoji, emoji, n.Message, n.Timestamp.Format("15:04:05"))

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
