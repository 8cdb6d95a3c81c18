package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultTelegramURL is the Bot API root.
const DefaultTelegramURL = "https://api.telegram.org"

// requestSlack is added on top of the long-poll timeout so the HTTP request
// outlives the server-side wait.
const requestSlack = 10 * time.Second

// Telegram talks to the Telegram Bot API.
type Telegram struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewTelegram creates a Bot API client. baseURL may be empty.
func NewTelegram(token, baseURL string) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}, nil
}

var (
	_ Source    = (*Telegram)(nil)
	_ Deliverer = (*Telegram)(nil)
)

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type apiUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *apiMessage `json:"message"`
}

type apiMessage struct {
	MessageID int64 `json:"message_id"`
	From      *struct {
		ID int64 `json:"id"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

func (t *Telegram) methodURL(method string) string {
	return t.baseURL + "/bot" + t.token + "/" + method
}

// GetUpdates long-polls for updates with id >= offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(int(timeout/time.Second)))

	ctx, cancel := context.WithTimeout(ctx, timeout+requestSlack)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getUpdates")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build getUpdates request: %w", err)
	}

	var raw []apiUpdate
	if err := t.do(req, &raw); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		update := Update{ID: u.UpdateID}
		if u.Message != nil {
			msg := &Message{ChatID: u.Message.Chat.ID, Text: u.Message.Text}
			if u.Message.From != nil {
				msg.UserID = u.Message.From.ID
			}
			update.Message = msg
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// SendText posts a plain text message.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{"chat_id": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := t.do(req, nil); err != nil {
		return fmt.Errorf("send text chat=%d: %w", chatID, err)
	}
	return nil
}

// SendVoice uploads the audio file at audioPath as a voice message.
func (t *Telegram) SendVoice(ctx context.Context, chatID int64, audioPath string) error {
	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := w.CreateFormFile("voice", filepath.Base(audioPath))
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendVoice"), &buf)
	if err != nil {
		return fmt.Errorf("build sendVoice request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := t.do(req, nil); err != nil {
		return fmt.Errorf("send voice chat=%d: %w", chatID, err)
	}
	return nil
}

// do executes req and decodes the result field into out when out is non-nil.
// Every failure is wrapped in ErrTransport.
func (t *Telegram) do(req *http.Request, out any) error {
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransport, t.redact(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: status %d: decode response: %w", ErrTransport, resp.StatusCode, err)
	}
	if !envelope.OK || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, envelope.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%w: decode result: %w", ErrTransport, err)
	}
	return nil
}

// redact strips the bot token from error text, since net/http errors echo
// the request URL.
func (t *Telegram) redact(s string) string {
	return strings.ReplaceAll(s, t.token, "<token>")
}
