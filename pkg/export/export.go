// Package export writes conversations and drafted replies to disk as JSON, CSV
// and plain text. Files are write-once; nothing in deskhand reads them back.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/pkg/errors"
)

const (
	maxNameLen   = 60
	fallbackName = "unnamed"
	stampLayout  = "20060102_150405"
)

var (
	unsafeName  = regexp.MustCompile(`[^A-Za-z0-9_\- ]+`)
	blankRuns   = regexp.MustCompile(`[ \t]+`)
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	csvHeader   = []string{"timestamp", "author_type", "author_name", "message"}
	txtRule     = strings.Repeat("-", 60)
	unknownWho  = "?"
	replyHeader = "DRAFTED REPLY"
)

// SanitizeName turns a client name into a filesystem-safe fragment.
func SanitizeName(name string) string {
	s := unsafeName.ReplaceAllString(name, "_")
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	if strings.TrimSpace(s) == "" {
		return fallbackName
	}
	return s
}

// CleanText normalizes whitespace for tabular output.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRuns.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Exporter writes conversation backups to BackupDir and replies to OutputDir.
type Exporter struct {
	BackupDir string
	OutputDir string
	Now       func() time.Time
}

// Result lists what ExportAll wrote and what failed, per format.
type Result struct {
	Paths  map[string]string
	Errors map[string]error
}

// ReplyMeta is the context printed around a saved reply.
type ReplyMeta struct {
	Provider string
	Model    string
	Close    bool
}

func New(backupDir, outputDir string) *Exporter {
	return &Exporter{BackupDir: backupDir, OutputDir: outputDir, Now: time.Now}
}

func (e *Exporter) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Exporter) path(dir, prefix, name, ext string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	file := fmt.Sprintf("%s_%s_%s.%s", prefix, SanitizeName(name), e.now().Format(stampLayout), ext)
	return filepath.Join(dir, file), nil
}

// ExportAll writes JSON, CSV and TXT. A failure in one format does not stop the others.
func (e *Exporter) ExportAll(conv *conversation.Conversation) Result {
	res := Result{Paths: map[string]string{}, Errors: map[string]error{}}
	writers := []struct {
		format string
		fn     func(*conversation.Conversation) (string, error)
	}{
		{"json", e.WriteJSON},
		{"csv", e.WriteCSV},
		{"txt", e.WriteTXT},
	}
	for _, w := range writers {
		p, err := w.fn(conv)
		if err != nil {
			res.Errors[w.format] = err
			continue
		}
		res.Paths[w.format] = p
	}
	return res
}

// WriteJSON writes the conversation with 2-space indentation and non-ASCII kept as is.
func (e *Exporter) WriteJSON(conv *conversation.Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("export json: nil conversation")
	}
	p, err := e.path(e.BackupDir, "conversation", conv.ClientName, "json")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(conv); err != nil {
		return "", errors.Wrap(err, "export json: encode")
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(err, "export json: write")
	}
	return p, nil
}

// WriteCSV writes one row per message with a UTF-8 byte order mark so
// spreadsheet tools pick the right encoding.
func (e *Exporter) WriteCSV(conv *conversation.Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("export csv: nil conversation")
	}
	p, err := e.path(e.BackupDir, "conversation", conv.ClientName, "csv")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", errors.Wrap(err, "export csv: header")
	}
	for _, m := range conv.Messages {
		row := []string{
			CleanText(m.Timestamp),
			CleanText(string(m.AuthorType)),
			CleanText(m.AuthorName),
			CleanText(m.Text),
		}
		if err := w.Write(row); err != nil {
			return "", errors.Wrap(err, "export csv: row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "export csv: flush")
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(err, "export csv: write")
	}
	return p, nil
}

// WriteTXT writes a human-readable transcript.
func (e *Exporter) WriteTXT(conv *conversation.Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("export txt: nil conversation")
	}
	p, err := e.path(e.BackupDir, "conversation", conv.ClientName, "txt")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte(Transcript(conv)), 0o644); err != nil {
		return "", errors.Wrap(err, "export txt: write")
	}
	return p, nil
}

// Transcript renders the text export body.
func Transcript(conv *conversation.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n", conv.ClientName)
	fmt.Fprintf(&b, "Last from client: %s\n", conv.LastClientMessage)
	fmt.Fprintf(&b, "Last from agent: %s\n", conv.LastAgentMessage)
	b.WriteString(txtRule)
	b.WriteString("\n")
	for _, m := range conv.Messages {
		who := m.AuthorName
		if who == "" {
			who = string(m.AuthorType)
		}
		if who == "" {
			who = unknownWho
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp, who, CleanText(m.Text))
	}
	return b.String()
}

// WriteReply saves a drafted reply to OutputDir.
func (e *Exporter) WriteReply(conv *conversation.Conversation, reply string, meta ReplyMeta) (string, error) {
	name := ""
	if conv != nil {
		name = conv.ClientName
	}
	p, err := e.path(e.OutputDir, "reply", name, "txt")
	if err != nil {
		return "", err
	}
	rule := strings.Repeat("=", 47)
	var b strings.Builder
	b.WriteString(replyHeader + "\n")
	fmt.Fprintf(&b, "Date: %s\n", e.now().Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "Client: %s\n", name)
	if meta.Provider != "" {
		fmt.Fprintf(&b, "Provider: %s\n", meta.Provider)
	}
	if meta.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", meta.Model)
	}
	if meta.Close {
		b.WriteString("Close suggested: yes\n")
	}
	fmt.Fprintf(&b, "\n%s\n\n%s\n\n%s\n", rule, reply, rule)
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "export reply: write")
	}
	return p, nil
}
