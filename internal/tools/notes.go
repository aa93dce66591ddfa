package tools

import (
	"context"
	"fmt"

	"github.com/xaenox/unimind/internal/models"
)

type SaveNoteInput struct {
	Title   string   `json:"title" jsonschema_description:"Note title."`
	Content string   `json:"content" jsonschema_description:"Note body."`
	Tags    []string `json:"tags,omitempty" jsonschema_description:"Optional tags (default none)."`
}

type SaveNoteResult struct {
	Success bool   `json:"success"`
	NoteID  string `json:"note_id"`
}

type SearchNotesInput struct {
	Query string `json:"query" jsonschema_description:"Text to look for in note titles and bodies (case-sensitive substring)."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum notes to return (default 10, at most 100)."`
}

type SearchNotesResult struct {
	Success bool          `json:"success"`
	Notes   []models.Note `json:"notes"`
	Count   int           `json:"count"`
}

type ListNotesInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum notes to return (default 20, at most 100)."`
}

type ListNotesResult struct {
	Success bool          `json:"success"`
	Notes   []models.Note `json:"notes"`
}

var saveNoteTool = define(SaveNote,
	"Save a note with a title, content and optional tags.",
	saveNote)

var searchNotesTool = define(SearchNotes,
	"Search notes whose title or content contains the query. Only the first 100 stored notes are scanned.",
	searchNotes)

var listNotesTool = define(ListNotes,
	"List stored notes. Limits above 100 are capped at 100.",
	listNotes)

func saveNote(ctx context.Context, d *Dispatcher, tenantID string, in SaveNoteInput) (any, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	note := &models.Note{
		Title:   in.Title,
		Content: in.Content,
		Tags:    tags,
	}
	if err := d.notes.CreateNote(ctx, tenantID, note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}

	return SaveNoteResult{Success: true, NoteID: note.ID}, nil
}

func searchNotes(ctx context.Context, d *Dispatcher, tenantID string, in SearchNotesInput) (any, error) {
	limit := d.limits.clamp(in.Limit, d.limits.SearchDefault)

	scanned, err := d.notes.ListNotes(ctx, tenantID, d.limits.SearchScanCap)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}

	matches := make([]models.Note, 0, limit)
	for i := range scanned {
		if len(matches) == limit {
			break
		}
		if scanned[i].HasText(in.Query) {
			matches = append(matches, scanned[i])
		}
	}

	return SearchNotesResult{Success: true, Notes: matches, Count: len(matches)}, nil
}

func listNotes(ctx context.Context, d *Dispatcher, tenantID string, in ListNotesInput) (any, error) {
	limit := d.limits.clamp(in.Limit, d.limits.ListDefault)

	notes, err := d.notes.ListNotes(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if notes == nil {
		notes = []models.Note{}
	}

	return ListNotesResult{Success: true, Notes: notes}, nil
}
