package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/user/deckster/internal/types"
)

type capture struct {
	events []*types.AgentEvent
	users  []types.UserMessageRecord
}

func (c *capture) sessionID() types.SessionID {
	for _, e := range c.events {
		if e.SessionID != "" {
			return e.SessionID
		}
	}
	return "replay"
}

// loadCapture reads one Director frame per line from eventsPath and, when
// cachePath is set, the JSON array of user records saved by the client.
func loadCapture(eventsPath, cachePath string) (*capture, error) {
	f, err := os.Open(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	c := &capture{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var ev types.AgentEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", eventsPath, line, err)
		}
		if ev.MessageID == "" {
			return nil, fmt.Errorf("%s:%d: event has no message_id", eventsPath, line)
		}
		c.events = append(c.events, &ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	if cachePath != "" {
		data, err := os.ReadFile(cachePath)
		if err != nil {
			return nil, fmt.Errorf("read user cache: %w", err)
		}
		if err := json.Unmarshal(data, &c.users); err != nil {
			return nil, fmt.Errorf("parse user cache %s: %w", cachePath, err)
		}
	}
	return c, nil
}
