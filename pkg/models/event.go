package models

import (
	"encoding/json"
	"fmt"
)

// Event is one row of a thread's event table. Cols holds one raw JSON value
// per column header of the owning thread.
type Event struct {
	ID         int64             `json:"id"`
	Posted     bool              `json:"posted"`
	InThreadID int64             `json:"in_thread_id"`
	Cols       []json.RawMessage `json:"cols"`
}

func (e Event) Clone() Event {
	e.Cols = append([]json.RawMessage{}, e.Cols...)
	return e
}

type EventInsert struct {
	Posted     bool              `json:"posted"`
	InThreadID int64             `json:"in_thread_id"`
	Cols       []json.RawMessage `json:"cols"`
}

type EventUpdate struct {
	Posted *bool             `json:"posted,omitempty"`
	Cols   []json.RawMessage `json:"cols,omitempty"`
}

func (u EventUpdate) Apply(e *Event) {
	if u.Posted != nil {
		e.Posted = *u.Posted
	}
	if u.Cols != nil {
		e.Cols = append([]json.RawMessage{}, u.Cols...)
	}
}

// ColumnPatch replaces a single column of an event. On the wire it is the
// two element array [index, value].
type ColumnPatch struct {
	Index int
	Value json.RawMessage
}

func (p *ColumnPatch) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("column patch must be [index, value], got %d elements", len(pair))
	}
	var idx uint
	if err := json.Unmarshal(pair[0], &idx); err != nil {
		return err
	}
	p.Index = int(idx)
	p.Value = append(json.RawMessage{}, pair[1]...)
	return nil
}

func (p ColumnPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Index, p.Value})
}
