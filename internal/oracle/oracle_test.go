package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lazypower/attractor/internal/basin"
	"github.com/lazypower/attractor/internal/llm"
)

func TestNullOracle(t *testing.T) {
	_, err := Null{}.Score(context.Background(), "x", basin.Descriptor{Name: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.85", 0.85, false},
		{"  0.2\n", 0.2, false},
		{"Score: 0.7 because it matches", 0.7, false},
		{"85%", 0.85, false},
		{"1", 1, false},
		{"3.5", 1, false},
		{"-0.4", 0, false},
		{"no idea", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseScore(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("ParseScore(%q) err = %v, want ErrUnavailable", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScore(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScore(%q) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestLLMOracle(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "0.8", Provider: "mock"}}
	o := NewLLM(mock)

	d := basin.Descriptor{Name: "cognitive", Description: "cognitive science", Concepts: []string{"brain"}}
	got, err := o.Score(context.Background(), "neurons and memory", d)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0.8 {
		t.Errorf("score = %f, want 0.8", got)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(mock.Calls))
	}
	prompt := mock.Calls[0]
	for _, want := range []string{"neurons and memory", "cognitive science", "brain"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLLMOracleFailure(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("timeout")}
	_, err := NewLLM(mock).Score(context.Background(), "x", basin.Descriptor{Name: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}

	_, err = NewLLM(nil).Score(context.Background(), "x", basin.Descriptor{Name: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil client err = %v, want ErrUnavailable", err)
	}
}
