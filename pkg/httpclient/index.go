package httpclient

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rolloutd/agent/pkg/errs"
)

// Entry is one row of a directory listing.
type Entry struct {
	Filename string
	Type     string
	Size     int64
	Mtime    string
	Checksum string

	// Extra preserves header fields the native listing format carries
	// beyond the ones this agent understands.
	Extra map[string]string
}

var hrefRe = regexp.MustCompile(`(?i)<a\s+[^>]*href="([^"]+)"[^>]*>([^<]*)</a>`)

// Index GETs a directory URL and parses it into a list of Entry,
// trying the agent's native "Rolloutd File Listing" table first, then
// falling back to Apache- and Nginx-style HTML listings. Entries named
// "../" or containing "?" are dropped.
func (c *Client) Index(ctx context.Context, url string) ([]Entry, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	text := string(body)

	if strings.Contains(text, "Rolloutd File Listing") {
		return parseNativeListing(text)
	}

	entries := parseHrefListing(text)
	if entries == nil {
		return nil, &errs.ConfigError{Msg: "unrecognized directory listing format at " + url}
	}
	return entries, nil
}

// parseNativeListing parses the agent's own table format: a header
// row of column names followed by one whitespace-delimited row per
// file. Unknown header columns are preserved verbatim in Extra.
func parseNativeListing(text string) ([]Entry, error) {
	lines := strings.Split(text, "\n")
	var headerIdx = -1
	var cols []string
	for i, line := range lines {
		if strings.Contains(line, "filename") && strings.Contains(line, "type") {
			cols = strings.Fields(line)
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, &errs.ConfigError{Msg: "native listing missing header row"}
	}

	colIndex := make(map[string]int, len(cols))
	for i, c := range cols {
		colIndex[c] = i
	}

	var entries []Entry
	for _, line := range lines[headerIdx+1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		e := Entry{Extra: map[string]string{}}
		for name, idx := range colIndex {
			if idx >= len(fields) {
				continue
			}
			val := fields[idx]
			switch name {
			case "filename":
				e.Filename = val
			case "type":
				e.Type = val
			case "size":
				e.Size, _ = strconv.ParseInt(val, 10, 64)
			case "mtime":
				e.Mtime = val
			case "checksum":
				e.Checksum = val
			default:
				e.Extra[name] = val
			}
		}
		if skipName(e.Filename) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// parseHrefListing handles both Apache (<img …><a href=…>) and Nginx
// (<a href=…>) style listings: both are just anchor tags once the
// leading <img> icon is ignored. Returns nil if no anchors are found,
// signaling the format didn't match at all.
func parseHrefListing(text string) []Entry {
	matches := hrefRe.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		href := strings.TrimSpace(m[1])
		if skipName(href) {
			continue
		}
		entries = append(entries, Entry{
			Filename: strings.TrimSuffix(href, "/"),
			Type:     typeFromHref(href),
		})
	}
	return entries
}

func typeFromHref(href string) string {
	if strings.HasSuffix(href, "/") {
		return "directory"
	}
	return "file"
}

func skipName(name string) bool {
	return name == "" || name == "../" || strings.Contains(name, "?")
}
