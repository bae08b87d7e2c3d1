// Package job holds the record a crawl produces for each accepted listing.
package job

import (
	"strconv"
	"strings"
)

// StatusNew marks a listing found by the current run.
const StatusNew = "new"

// UnknownCompany is used when a page does not name its employer.
const UnknownCompany = "Unknown"

// Result is one accepted job listing.
type Result struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
	Status  string `json:"status"`
}

// CSVHeader is the column order used by CSV output.
var CSVHeader = []string{"title", "company", "url", "score", "reason", "status"}

// CSVRecord returns r in CSVHeader order.
func (r Result) CSVRecord() []string {
	return []string{r.Title, r.Company, r.URL, strconv.Itoa(r.Score), r.Reason, r.Status}
}

// TitleFromText returns the first n words of text, the fallback title for a
// page without usable metadata.
func TitleFromText(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
