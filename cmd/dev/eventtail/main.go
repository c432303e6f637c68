// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// eventtail is a development tool that connects to a running vidya server's
// WebSocket endpoint and renders the live workflow event stream.
//
// Usage:
//
//	go run ./cmd/dev/eventtail -addr ws://127.0.0.1:8080/ws [-workflow <id>]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/vidya-ai/vidya/internal/workflow"
)

const maxLines = 500

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skipStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	terminalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

type eventMsg struct {
	workflowID string
	event      workflow.Event
}

type disconnectMsg struct{ err error }

type model struct {
	addr     string
	lines    []string
	events   int
	gone     bool
	goneErr  error
	height   int
	quitting bool
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case eventMsg:
		m.events++
		m.lines = append(m.lines, renderEvent(msg.workflowID, msg.event))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, nil

	case disconnectMsg:
		m.gone = true
		m.goneErr = msg.err
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	header := titleStyle.Render(fmt.Sprintf("vidya event tail — %s (%d events)", m.addr, m.events))
	if m.gone {
		header += "  " + errorStyle.Render(fmt.Sprintf("disconnected: %v", m.goneErr))
	}

	visible := m.lines
	if m.height > 4 && len(visible) > m.height-4 {
		visible = visible[len(visible)-(m.height-4):]
	}

	body := ""
	for _, line := range visible {
		body += line + "\n"
	}

	return header + "\n\n" + body + helpStyle.Render("q: quit")
}

func renderEvent(workflowID string, ev workflow.Event) string {
	style := lipgloss.NewStyle()
	switch ev.Type {
	case workflow.EventError:
		style = errorStyle
	case workflow.EventAgentSkipped:
		style = skipStyle
	case workflow.EventWorkflowCompleted:
		style = terminalStyle
	}

	detail := ""
	if step, ok := ev.Payload["step"]; ok {
		detail = fmt.Sprintf(" step=%v", step)
	}
	if name, ok := ev.Payload["capability"].(string); ok {
		detail += " " + name
	}
	if msg, ok := ev.Payload["message"].(string); ok {
		detail += " " + msg
	}

	return fmt.Sprintf("%s %s %s%s",
		timeStyle.Render(ev.Timestamp.Format("15:04:05.000")),
		idStyle.Render(shortID(workflowID)),
		style.Render(string(ev.Type)),
		detail,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// readLoop pumps WebSocket frames into the bubbletea program.
func readLoop(conn *websocket.Conn, p *tea.Program) {
	type envelope struct {
		Type       string          `json:"type"`
		WorkflowID string          `json:"workflow_id"`
		Event      *workflow.Event `json:"event"`
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.Send(disconnectMsg{err: err})
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == nil {
			continue
		}
		p.Send(eventMsg{workflowID: env.WorkflowID, event: *env.Event})
	}
}

func main() {
	addr := flag.String("addr", "ws://127.0.0.1:8080/ws", "server WebSocket endpoint")
	workflowID := flag.String("workflow", "", "only show events for this workflow")
	flag.Parse()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if *workflowID != "" {
		sub := map[string]any{
			"type":    "subscribe",
			"filters": map[string]string{"workflow_id": *workflowID},
		}
		if err := conn.WriteJSON(sub); err != nil {
			fmt.Fprintf(os.Stderr, "Error subscribing: %v\n", err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(model{addr: *addr}, tea.WithAltScreen())
	go readLoop(conn, p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
