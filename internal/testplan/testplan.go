// Package testplan turns the method-summary table of a generated JavaDoc
// test-class page into a two-column CSV test plan.
package testplan

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Header is the CSV header row.
var Header = []string{"Test method", "Test description"}

// memberNameSelector matches method links in both the older camel-case
// and the newer kebab-case JavaDoc stylesheets.
const memberNameSelector = "span.memberNameLink, span.member-name-link"

// Entry is one row of a test plan.
type Entry struct {
	Method      string
	Description string
}

// Extract reads a JavaDoc page and returns one entry per documented method
// in its summary table, which is the second table on the page. If the
// first method is named setupMethod it is dropped.
func Extract(r io.Reader, setupMethod string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	tables := doc.Find("table")
	if tables.Length() < 2 {
		return nil, fmt.Errorf("summary table not found (page has %d tables)", tables.Length())
	}
	summary := tables.Eq(1)

	var entries []Entry
	summary.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		name := row.Find(memberNameSelector).First()
		if name.Length() == 0 {
			return
		}
		entries = append(entries, Entry{
			Method:      strings.TrimSpace(name.Text()),
			Description: strings.TrimSpace(row.Find("div").First().Text()),
		})
	})

	if len(entries) > 0 && setupMethod != "" && entries[0].Method == setupMethod {
		entries = entries[1:]
	}
	return entries, nil
}

// WriteCSV writes the header and one row per entry.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Method, e.Description}); err != nil {
			return fmt.Errorf("writing %s: %w", e.Method, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// OutputName returns the CSV file name for a page: its base name with
// the .html extension replaced.
func OutputName(page string) string {
	base := filepath.Base(page)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".csv"
}

// Source returns the page JavaDoc generates for the tests of class in
// package pkg, e.g. docs/utilstest/ValueSanityTest.html.
func Source(docs, pkg, class string) string {
	return filepath.Join(docs, pkg+"test", class+"Test.html")
}
