// Package pages renders the control-surface HTML.
package pages

import (
	"fmt"

	"notesync/engine"

	"github.com/rohanthewiz/element"
)

// StatusPage is the one HTML view: a snapshot of the engine for a human
// checking on the daemon. Everything richer goes through the JSON API.
type StatusPage struct {
	Status engine.EngineStatus
}

// Render builds the page HTML.
func (p StatusPage) Render() string {
	st := p.Status

	lastSync := "never"
	if st.LastSync != nil {
		lastSync = st.LastSync.Format("2006-01-02 15:04:05")
	}

	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Title().T("notesync"),
			b.Style().T(`
				body { font-family: sans-serif; margin: 40px; color: #2c3e50; }
				table { border-collapse: collapse; }
				td { padding: 4px 12px; border-bottom: 1px solid #eee; }
				.notice { color: #c0392b; }
			`),
		),
		b.Body().R(
			b.H1().T("notesync"),
			b.Table().R(
				statusRow(b, "Sync enabled", fmt.Sprintf("%t", st.Enabled)),
				statusRow(b, "Syncing now", fmt.Sprintf("%t", st.Syncing)),
				statusRow(b, "Last successful sync", lastSync),
				statusRow(b, "Consecutive failures", fmt.Sprintf("%d", st.Failures)),
				statusRow(b, "Items", fmt.Sprintf("%d", st.ItemCount)),
			),
			b.Wrap(func() {
				if st.Notice != "" {
					b.P("class", "notice").T(st.Notice)
				}
			}),
		),
	)

	return "<!DOCTYPE html>" + b.String()
}

func statusRow(b *element.Builder, label, value string) any {
	return b.Tr().R(
		b.Td().T(label),
		b.Td().T(value),
	)
}
