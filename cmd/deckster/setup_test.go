package main

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestAskAll(t *testing.T) {
	url, backend := "ws://localhost:8000/ws", "jsonl"
	fields := []setupField{
		{label: "url", value: &url},
		{label: "backend", value: &backend, validate: func(v string) error {
			if v != "jsonl" && v != "sqlite" {
				return errors.New("bad backend")
			}
			return nil
		}},
	}
	in := bufio.NewScanner(strings.NewReader("\npostgres\nsqlite\n"))
	if err := askAll(in, io.Discard, fields); err != nil {
		t.Fatalf("askAll: %v", err)
	}
	if url != "ws://localhost:8000/ws" {
		t.Errorf("empty answer should keep default, got %q", url)
	}
	if backend != "sqlite" {
		t.Errorf("expected re-asked backend sqlite, got %q", backend)
	}
}

func TestAskAllInvalidAtEOF(t *testing.T) {
	backend := "jsonl"
	fields := []setupField{{label: "backend", value: &backend, validate: func(v string) error {
		if v != "sqlite" {
			return errors.New("bad backend")
		}
		return nil
	}}}
	if err := askAll(bufio.NewScanner(strings.NewReader("")), io.Discard, fields); err == nil {
		t.Fatal("expected validation error once input is exhausted")
	}
}
