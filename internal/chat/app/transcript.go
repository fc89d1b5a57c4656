package app

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"marketplace_chat_service/internal/chat/domain"
)

const transcriptTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Conversation {{.ID}}</title>
<style>
body{font-family:Arial,Helvetica,sans-serif;margin:24px;color:#222;background:#fff}
header{border-bottom:1px solid #ccc;margin-bottom:16px;padding-bottom:8px}
h1{font-size:20px;margin:0 0 8px}
.reason{color:#a40000}
.message{margin:0 0 12px;padding:8px;border-left:3px solid #4a76a8;background:#f6f8fa}
.meta{font-size:12px;color:#555;margin-bottom:4px}
.sender{font-weight:bold}
.content{white-space:pre-wrap;word-wrap:break-word}
</style>
</head>
<body>
<header>
<h1>Conversation transcript</h1>
<p><strong>Conversation:</strong> {{.ID}}</p>
<p><strong>Participants:</strong> {{.Participants}}</p>
<p><strong>Started:</strong> {{.Started}}</p>
<p><strong>Ended:</strong> {{.Ended}}</p>
{{- if .Reason}}
<p class="reason"><strong>Report reason:</strong> {{.Reason}}</p>
{{- end}}
</header>
<main>
{{- range .Messages}}
<div class="message"><div class="meta"><span class="sender">{{.Sender}}</span> at <time>{{.At}}</time></div><div class="content">{{.Content}}</div></div>
{{- end}}
</main>
</body>
</html>
`

var transcriptTmpl = template.Must(template.New("transcript").Parse(transcriptTemplate))

type transcriptView struct {
	ID           string
	Participants string
	Started      string
	Ended        string
	Reason       string
	Messages     []transcriptLine
}

type transcriptLine struct {
	Sender  string
	At      string
	Content string
}

// BuildTranscript render a self-contained HTML document of the conversation.
// Output depends only on the inputs; messages keep the given order.
func BuildTranscript(conv *domain.Conversation, messages []domain.Message, reason string) (string, error) {
	view := transcriptView{
		ID:           conv.ID,
		Participants: strings.Join(conv.Participants, ", "),
		Started:      formatTime(conv.CreatedAt),
		Ended:        formatTime(endedAt(conv, messages)),
		Reason:       strings.TrimSpace(reason),
		Messages:     make([]transcriptLine, 0, len(messages)),
	}
	for _, m := range messages {
		view.Messages = append(view.Messages, transcriptLine{
			Sender:  m.Sender,
			At:      formatTime(m.CreatedAt),
			Content: m.Content,
		})
	}

	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func endedAt(conv *domain.Conversation, messages []domain.Message) time.Time {
	if n := len(messages); n > 0 {
		return messages[n-1].CreatedAt
	}
	if !conv.LastActiveAt.IsZero() {
		return conv.LastActiveAt
	}
	return conv.CreatedAt
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
