package bootstrap

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/site-portfolio/internal/recompute"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

// renderSyncResult prints one row per synced site followed by a totals footer.
func renderSyncResult(w io.Writer, result *syncer.Result) {
	fmt.Fprintf(w, "%s sync %s to %s\n", result.Provider, result.StartDate, result.EndDate)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Site", "Connector", "Rows", "Status"})

	for _, r := range result.Results {
		status := "ok"
		if !r.Success {
			status = r.Error
		}
		name := r.SiteName
		if name == "" {
			name = r.SiteID
		}
		t.AppendRow(table.Row{name, r.ConnectorID, r.Rows, status})
	}

	t.AppendFooter(table.Row{"", "", "Succeeded", result.SuccessCount})
	t.AppendFooter(table.Row{"", "", "Failed", result.FailureCount})
	t.Render()
}

// renderRecomputeResult prints the batch totals and any per-site errors.
func renderRecomputeResult(w io.Writer, result *recompute.BatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Total", "Updated", "Unchanged", "Failed"})
	t.AppendRow(table.Row{result.Total, result.Updated, result.Unchanged, result.Failed})
	t.Render()

	if len(result.Errors) == 0 {
		return
	}

	errs := table.NewWriter()
	errs.SetOutputMirror(w)
	errs.SetStyle(table.StyleLight)
	errs.AppendHeader(table.Row{"Backlink site", "Error"})
	for _, e := range result.Errors {
		errs.AppendRow(table.Row{e.BacklinkSiteID, e.Error})
	}
	errs.Render()
}
