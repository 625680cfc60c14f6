// Package dataset renders curated completions as chat fine-tuning records,
// one compact JSON object per line.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lyricgen/lyricgen/internal/batch"
	"github.com/lyricgen/lyricgen/internal/model"
)

const ContentType = "application/json"

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("no entries selected for export")

type Record struct {
	Messages []model.Message `json:"messages"`
}

func newRecord(systemContext, userPrompt, assistant string) Record {
	return Record{Messages: []model.Message{
		{Role: model.RoleSystem, Content: systemContext},
		{Role: model.RoleUser, Content: userPrompt},
		{Role: model.RoleAssistant, Content: assistant},
	}}
}

// Assemble renders one record per edited text, in order, joined by "\n"
// with no trailing newline. Text is emitted verbatim; HTML escaping is off.
func Assemble(systemContext, userPrompt string, edited []string) ([]byte, error) {
	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)

	var out bytes.Buffer
	for i, text := range edited {
		line.Reset()
		if err := enc.Encode(newRecord(systemContext, userPrompt, text)); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		if i > 0 {
			out.WriteByte('\n')
		}
		out.Write(bytes.TrimSuffix(line.Bytes(), []byte("\n")))
	}
	return out.Bytes(), nil
}

// FromState assembles the included entries of the current batch in
// insertion order. It returns ErrEmpty when nothing is included.
func FromState(state *batch.State) ([]byte, error) {
	included := state.Curation().Included()
	if len(included) == 0 {
		return nil, ErrEmpty
	}
	edited := make([]string, 0, len(included))
	for _, entry := range included {
		edited = append(edited, entry.Edited)
	}
	req := state.Request()
	return Assemble(req.SystemContext, req.UserPrompt, edited)
}

// LineError reports a malformed artifact line (1-based).
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

var expectedRoles = []string{model.RoleSystem, model.RoleUser, model.RoleAssistant}

// Decode parses an artifact and checks that every record holds exactly a
// system, a user and an assistant message, in that order. Blank lines are
// not allowed.
func Decode(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, &LineError{Line: lineNo, Err: errors.New("blank line")}
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, &LineError{Line: lineNo, Err: err}
		}
		if err := validateRecord(rec); err != nil {
			return nil, &LineError{Line: lineNo, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return records, nil
}

func validateRecord(rec Record) error {
	if len(rec.Messages) != len(expectedRoles) {
		return fmt.Errorf("expected %d messages, got %d", len(expectedRoles), len(rec.Messages))
	}
	var got []string
	for _, msg := range rec.Messages {
		got = append(got, msg.Role)
	}
	for i, role := range expectedRoles {
		if rec.Messages[i].Role != role {
			return fmt.Errorf("message roles %s, want %s", strings.Join(got, ","), strings.Join(expectedRoles, ","))
		}
	}
	return nil
}
