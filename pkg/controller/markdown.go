package controller

import (
	"encoding/json"
	"fmt"
	"strings"

	"enceladus/pkg/models"
	"enceladus/pkg/state/logger"

	"github.com/cockroachdb/errors"
)

var cellEscaper = strings.NewReplacer("\n", " ", "|", `\|`)

// RenderThread renders every section of th, in order, as markdown.
func (c *Controller) RenderThread(th models.Thread) (string, error) {
	var events []models.Event
	var b strings.Builder
	for _, sid := range th.SectionsID {
		sec, err := c.Section(sid)
		if err != nil {
			return "", errors.Wrapf(err, "render section %d", sid)
		}
		if sec.IsEventsSection && events == nil {
			events = make([]models.Event, 0, len(th.EventsID))
			for _, eid := range th.EventsID {
				ev, err := c.Event(eid)
				if err != nil {
					return "", errors.Wrapf(err, "render event %d", eid)
				}
				events = append(events, ev)
			}
		}
		b.WriteString(RenderSection(th, sec, events))
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// RenderSection renders a text section as a heading plus content, and an
// events section as a heading plus the table of posted events.
func RenderSection(th models.Thread, sec models.Section, events []models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sec.Name)
	if !sec.IsEventsSection {
		b.WriteString(sec.Content)
		return b.String()
	}
	for _, h := range th.EventColumnHeaders {
		b.WriteString("|" + cellEscaper.Replace(h))
	}
	b.WriteString("|\n")
	for range th.EventColumnHeaders {
		b.WriteString("|---")
	}
	b.WriteString("|\n")
	for _, ev := range events {
		b.WriteString(RenderEventRow(th, ev))
	}
	return b.String()
}

// RenderEventRow renders one table row, or nothing for unposted events.
func RenderEventRow(th models.Thread, ev models.Event) string {
	if !ev.Posted {
		return ""
	}
	var b strings.Builder
	for i, col := range ev.Cols {
		utc := th.SpaceUTCColIndex != nil && *th.SpaceUTCColIndex == i
		b.WriteString("|" + cellEscaper.Replace(renderCell(col, utc)))
	}
	b.WriteString("|\n")
	return b.String()
}

func renderCell(raw json.RawMessage, utc bool) string {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		logger.Warn("markdown_bad_cell", "error", err)
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		if utc {
			ts, err := t.Int64()
			if err != nil {
				f, _ := t.Float64()
				ts = int64(f)
			}
			secs := ts % 86_400
			if secs < 0 {
				secs += 86_400
			}
			return fmt.Sprintf("%02d:%02d", secs/3_600, secs%3_600/60)
		}
		return t.String()
	case nil:
		return ""
	default:
		return string(raw)
	}
}
