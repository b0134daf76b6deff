package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/media-fetch-go/internal/domain"
	"github.com/yourusername/media-fetch-go/pkg/logger"
)

func printRequestTable(w io.Writer, requests []*domain.Request) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATE\tTITLE\tSIZE\tCREATED")
	for _, r := range requests {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(r.ID, 8),
			r.Kind,
			r.State,
			truncate(title, 40),
			sizeLabel(r.SizeBytes),
			humanize.Time(r.CreatedAt))
	}
	tw.Flush()
}

func printRequest(w io.Writer, r *domain.Request) {
	fmt.Fprintf(w, "Request Details:\n")
	fmt.Fprintf(w, "  ID:       %s\n", r.ID)
	fmt.Fprintf(w, "  URL:      %s\n", r.URL)
	fmt.Fprintf(w, "  Resource: %s\n", r.ResourceID)
	fmt.Fprintf(w, "  Kind:     %s\n", r.Kind)
	if r.Language != "" {
		fmt.Fprintf(w, "  Language: %s\n", r.Language)
	}
	fmt.Fprintf(w, "  State:    %s\n", r.State)
	if r.Title != "" {
		fmt.Fprintf(w, "  Title:    %s\n", r.Title)
	}
	if r.DurationSec > 0 {
		fmt.Fprintf(w, "  Length:   %s\n", (time.Duration(r.DurationSec) * time.Second).String())
	}
	fmt.Fprintf(w, "  Created:  %s (%s)\n", r.CreatedAt.Format(time.RFC3339), humanize.Time(r.CreatedAt))
	if r.Location != "" {
		fmt.Fprintf(w, "  File:     %s (%s)\n", r.Location, sizeLabel(r.SizeBytes))
	}
	if r.FailureKind != "" {
		fmt.Fprintf(w, "  Failure:  %s\n", r.FailureKind.UserMessage())
		fmt.Fprintf(w, "  Error:    %s\n", r.ErrorMessage)
	}
}

func printStats(w io.Writer, s *domain.RequestStats) {
	fmt.Fprintln(w, "Request Statistics:")
	fmt.Fprintf(w, "  Total:      %d\n", s.Total)
	fmt.Fprintf(w, "  Requested:  %d\n", s.Requested)
	fmt.Fprintf(w, "  Active:     %d\n", s.Active)
	fmt.Fprintf(w, "  Delivered:  %d (%s)\n", s.Delivered, humanize.Bytes(uint64(s.BytesTotal)))
	fmt.Fprintf(w, "  Failed:     %d\n", s.Failed)
	fmt.Fprintf(w, "  Cancelled:  %d\n", s.Cancelled)
}

func printLogEntries(w io.Writer, entries []logger.LogEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-5s  %s", e.Timestamp, e.Level, e.Message)
		for k, v := range e.Fields {
			fmt.Fprintf(w, "  %s=%v", k, v)
		}
		fmt.Fprintln(w)
	}
}

func sizeLabel(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
