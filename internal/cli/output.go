package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/gobeaver/cloudfs"
)

type listEntry struct {
	Name        string `yaml:"name"`
	Dir         bool   `yaml:"dir"`
	Size        *int64 `yaml:"size,omitempty"`
	ContentType string `yaml:"content_type,omitempty"`
}

func newListEntry(node cloudfs.FsNode) listEntry {
	return listEntry{
		Name:        node.Name,
		Dir:         node.IsDir,
		Size:        node.ContentLength,
		ContentType: node.ContentType,
	}
}

type copySummary struct {
	Total   int64    `yaml:"total"`
	Copied  int64    `yaml:"copied"`
	Skipped int64    `yaml:"skipped"`
	Failed  int64    `yaml:"failed"`
	Bytes   int64    `yaml:"bytes"`
	Partial bool     `yaml:"partial"`
	Errors  []string `yaml:"errors,omitempty"`
}

func newCopySummary(r *cloudfs.CopyReport) copySummary {
	s := copySummary{
		Total:   r.Total,
		Copied:  r.Copied,
		Skipped: r.Skipped,
		Failed:  r.Failed,
		Bytes:   r.Bytes,
		Partial: r.Partial(),
	}
	if r.Discovery != nil {
		s.Errors = append(s.Errors, r.Discovery.Error())
	}
	for _, err := range r.Errors {
		s.Errors = append(s.Errors, err.Error())
	}
	return s
}

// printer renders command results in the configured output format.
type printer struct {
	w      io.Writer
	format string
}

func (p *printer) yaml(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}

func (p *printer) entries(entries []listEntry, long bool) error {
	if p.format == OutputYAML {
		if entries == nil {
			entries = []listEntry{}
		}
		return p.yaml(entries)
	}

	if !long {
		for _, e := range entries {
			name := e.Name
			if e.Dir {
				name += "/"
			}
			if _, err := fmt.Fprintln(p.w, name); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		kind, size, name := "-", "-", e.Name
		if e.Dir {
			kind = "d"
			name += "/"
		}
		if e.Size != nil {
			size = fmt.Sprint(*e.Size)
		}
		contentType := e.ContentType
		if contentType == "" {
			contentType = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind, size, contentType, name)
	}
	return tw.Flush()
}

func (p *printer) compareItems(items []cloudfs.CompareItem) error {
	if p.format == OutputYAML {
		if items == nil {
			items = []cloudfs.CompareItem{}
		}
		return p.yaml(items)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", item.State, item.Path, item.Reason)
	}
	return tw.Flush()
}

func (p *printer) copyReport(r *cloudfs.CopyReport) error {
	s := newCopySummary(r)
	if p.format == OutputYAML {
		return p.yaml(s)
	}
	_, err := fmt.Fprintf(p.w, "%d copied, %d skipped, %d failed, %d bytes\n", s.Copied, s.Skipped, s.Failed, s.Bytes)
	return err
}

func (p *printer) lines(lines []string) error {
	if p.format == OutputYAML {
		if lines == nil {
			lines = []string{}
		}
		return p.yaml(lines)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(p.w, l); err != nil {
			return err
		}
	}
	return nil
}
