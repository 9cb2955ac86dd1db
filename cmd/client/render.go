package main

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/projection"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type action int

const (
	actionNone action = iota
	actionSend
	actionWho
	actionQuit
)

type input struct {
	action  action
	command domain.Command
}

// parseInput maps a typed line to a relay command or a local action.
func parseInput(line string) input {
	switch strings.TrimSpace(line) {
	case "":
		return input{action: actionNone}
	case "/quit":
		return input{action: actionQuit}
	case "/who":
		return input{action: actionWho}
	case "/typing":
		return input{action: actionSend, command: domain.TypingPulseCommand{}}
	default:
		return input{action: actionSend, command: domain.SendMessageCommand{Text: line}}
	}
}

// printer serializes terminal output between the reader and the prompt.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func newPrinter(out io.Writer, colours bool) *printer {
	return &printer{out: out, colours: colours}
}

func (p *printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, line)
}

func (p *printer) info(line string) {
	p.println(p.paint(color.FgGray, line))
}

func (p *printer) paint(c color.Color, s string) string {
	if !p.colours {
		return s
	}
	return c.Render(s)
}

// render formats one event, or returns "" when nothing should be shown.
func (p *printer) render(e event.DomainEvent, timeline *projection.Timeline) string {
	self := timeline.Self()
	switch evt := e.(type) {
	case event.MessageDelivered:
		name := p.paint(color.FgCyan, evt.SenderName)
		if evt.SenderID == self {
			name = p.paint(color.FgGreen, evt.SenderName)
		}
		return fmt.Sprintf("[%s] %s: %s", evt.SentAt.Local().Format(time.TimeOnly), name, evt.Text)
	case event.TypingStateChanged:
		if !evt.Typing || evt.ParticipantID == self {
			return ""
		}
		return p.paint(color.FgGray, fmt.Sprintf("%s is typing...", evt.DisplayName))
	case event.PresenceChanged:
		return p.paint(color.FgYellow, fmt.Sprintf("* %s %s", evt.DisplayName, evt.Kind))
	case event.CommandRejected:
		return p.paint(color.FgRed, fmt.Sprintf("! %s: %s", evt.Code, evt.Reason))
	}
	return ""
}

// printRoster renders the /who table.
func printRoster(w io.Writer, roster []domain.Participant, self domain.ParticipantID) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Id", "Since"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, participant := range roster {
		name := participant.DisplayName
		if participant.ID == self {
			name += " (you)"
		}
		table.Append([]string{name, string(participant.ID), participant.ConnectedAt.Local().Format(time.TimeOnly)})
	}
	table.Render()
}
