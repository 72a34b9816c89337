package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

// NotesValidator checks generated notes against their JSON contract.
type NotesValidator interface {
	ValidateNotes(raw []byte) error
}

// NoteWriter asks the model for qualitative pros and cons.
type NoteWriter struct {
	generator ports.TextGenerator
	validator NotesValidator
}

func NewNoteWriter(generator ports.TextGenerator, validator NotesValidator) *NoteWriter {
	return &NoteWriter{
		generator: generator,
		validator: validator,
	}
}

func (w *NoteWriter) WriteNotes(ctx context.Context, dim domain.Dimension, listing domain.Listing, facts map[string]any) ([]string, []string, error) {
	raw, err := w.generator.GenerateJSON(ctx, buildNotesPrompt(dim, listing, facts))
	if err != nil {
		return nil, nil, err
	}
	if w.validator != nil {
		if err := w.validator.ValidateNotes([]byte(raw)); err != nil {
			return nil, nil, fmt.Errorf("%s notes: %w", dim, err)
		}
	}

	var notes struct {
		Pros []string `json:"pros"`
		Cons []string `json:"cons"`
	}
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, nil, fmt.Errorf("parse %s notes json: %w", dim, err)
	}
	return cleanNotes(notes.Pros), cleanNotes(notes.Cons), nil
}

func cleanNotes(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Summarizer writes the short recommendation text.
type Summarizer struct {
	generator ports.TextGenerator
}

func NewSummarizer(generator ports.TextGenerator) *Summarizer {
	return &Summarizer{generator: generator}
}

func (s *Summarizer) Summarize(ctx context.Context, rec domain.Recommendation, priorities []domain.Priority) (string, error) {
	text, err := s.generator.GenerateText(ctx, buildSummaryPrompt(rec, priorities))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty summary for %s", rec.ListingID)
	}
	return text, nil
}
