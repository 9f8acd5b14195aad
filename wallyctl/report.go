package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/sensor"
)

// printReport writes one table per report, sensors sorted by name.
func printReport(w io.Writer, rep daq.Report) {
	names := make([]string, 0, len(rep.Readings))
	for name := range rep.Readings {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := time.Unix(0, int64(rep.Timestamp*1e9)).Format(time.TimeOnly)
	fmt.Fprintf(w, "%s  %s  active=%d reading=%t\n", ts, rep.DeviceID, rep.VernierActiveSensor, rep.VernierReadingActive)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		r := rep.Readings[name]
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, formatValue(r), r.Unit)
	}
	tw.Flush()
}

func formatValue(r sensor.Reading) string {
	if !r.OK() {
		return "error: " + r.Error
	}
	return fmt.Sprintf("%.2f", r.Float())
}
