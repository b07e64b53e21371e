// Package transcript reads Claude Code JSONL transcripts and reduces them to
// user/assistant exchanges.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single transcript line.
const maxLineBytes = 10 * 1024 * 1024

// Block represents a content block in a transcript message.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Content is a message body. The host writes user prompts as a bare string
// and everything else as a list of blocks.
type Content []Block

// UnmarshalJSON accepts either a string or a list of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{{Type: "text", Text: s}}
		return nil
	}

	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("decoding message content: %w", err)
	}
	*c = blocks
	return nil
}

// Message represents the message field within a JSONL entry.
type Message struct {
	ID      string  `json:"id"`
	Role    string  `json:"role"`
	Model   string  `json:"model"`
	Content Content `json:"content"`
}

// Entry represents a single line in a transcript.
type Entry struct {
	Type      string   `json:"type"`
	UUID      string   `json:"uuid"`
	SessionID string   `json:"sessionId"`
	IsMeta    bool     `json:"isMeta"`
	Message   *Message `json:"message"`
}

// TextContent extracts the concatenated text from all text content blocks.
func (e *Entry) TextContent() string {
	if e.Message == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range e.Message.Content {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Exchange is one user query and the assistant text that followed it.
type Exchange struct {
	Query    string
	Response string
}

// Complete reports whether both sides are non-empty.
func (e Exchange) Complete() bool {
	return e.Query != "" && e.Response != ""
}

// Transcript is the ordered list of exchanges in a session.
type Transcript struct {
	Exchanges []Exchange
	Model     string
	Skipped   int
}

// ReadFile parses the transcript at path.
func ReadFile(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Read parses JSONL from r. Malformed lines are counted and skipped.
func Read(r io.Reader) (*Transcript, error) {
	t := &Transcript{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var current *Exchange
	var response []string

	flush := func() {
		if current == nil {
			return
		}
		current.Response = strings.TrimSpace(strings.Join(response, "\n"))
		t.Exchanges = append(t.Exchanges, *current)
		current = nil
		response = nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Skipped++
			continue
		}
		if entry.Message == nil || entry.IsMeta {
			continue
		}

		text := entry.TextContent()

		switch entry.Type {
		case "user":
			// Tool results arrive as user entries without text.
			if text == "" {
				continue
			}
			flush()
			current = &Exchange{Query: text}

		case "assistant":
			if entry.Message.Model != "" {
				t.Model = entry.Message.Model
			}
			if text == "" || current == nil {
				continue
			}
			response = append(response, text)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return t, fmt.Errorf("scanning transcript: %w", err)
	}

	return t, nil
}

// Previous returns the most recent complete exchange, ignoring a trailing
// exchange for currentPrompt that has not been answered yet.
func (t *Transcript) Previous(currentPrompt string) (Exchange, bool) {
	currentPrompt = strings.TrimSpace(currentPrompt)

	for i := len(t.Exchanges) - 1; i >= 0; i-- {
		ex := t.Exchanges[i]
		if i == len(t.Exchanges)-1 && ex.Response == "" && ex.Query == currentPrompt {
			continue
		}
		if ex.Complete() {
			return ex, true
		}
		if ex.Response == "" {
			// An unanswered exchange in the middle breaks the pairing.
			return Exchange{}, false
		}
	}
	return Exchange{}, false
}

// Last returns the final exchange, answered or not.
func (t *Transcript) Last() (Exchange, bool) {
	if len(t.Exchanges) == 0 {
		return Exchange{}, false
	}
	return t.Exchanges[len(t.Exchanges)-1], true
}
