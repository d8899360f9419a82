package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/openmined/syftsync/internal/reconcile"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// printAdvisory writes the one line outcome of a sync step
func printAdvisory(w io.Writer, ok bool, msg string) {
	if ok {
		fmt.Fprintln(w, green("✓"), msg)
	} else {
		fmt.Fprintln(w, yellow("!"), msg)
	}
}

func printTransfers(w io.Writer, files []reconcile.Transfer) {
	for _, f := range files {
		fmt.Fprintf(w, "  %s %s %s\n", cyan(f.Name), gray(humanize.Bytes(uint64(f.Size))), gray(f.ModifiedAt.Local().Format("2006-01-02 15:04:05")))
	}
}
