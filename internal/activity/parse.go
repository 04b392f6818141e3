package activity

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	initialScanBufSize = 64 * 1024        // 64KB
	maxScanTokenSize   = 20 * 1024 * 1024 // 20MB
)

// ParseDocumentFile parses a collector export file. Each line
// is one user document in the nested wire format; a leading
// '[' means the whole file is a JSON array of documents.
// Malformed lines are skipped and counted, not fatal.
func ParseDocumentFile(
	path string,
) ([]RawUserDocument, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(
		make([]byte, 0, initialScanBufSize), maxScanTokenSize,
	)

	var (
		docs    []RawUserDocument
		skipped int
		first   = true
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first && strings.HasPrefix(line, "[") {
			// Whole-file array export. Re-read the file since
			// the array may span many lines.
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, 0, fmt.Errorf(
					"reading %s: %w", path, err,
				)
			}
			return parseDocumentArray(string(data))
		}
		first = false

		if !gjson.Valid(line) {
			skipped++
			continue
		}
		doc, ok := ParseUserDocument(line)
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	return docs, skipped, nil
}

// parseDocumentArray parses a JSON array of user documents.
func parseDocumentArray(
	data string,
) ([]RawUserDocument, int, error) {
	if !gjson.Valid(data) {
		return nil, 0, fmt.Errorf("invalid JSON document array")
	}
	var (
		docs    []RawUserDocument
		skipped int
	)
	gjson.Parse(data).ForEach(func(_, v gjson.Result) bool {
		doc, ok := ParseUserDocument(v.Raw)
		if !ok {
			skipped++
			return true
		}
		docs = append(docs, doc)
		return true
	})
	return docs, skipped, nil
}

// ParseUserDocument decodes one user document. Returns false
// when the document has no username, the only field the store
// cannot key without.
func ParseUserDocument(data string) (RawUserDocument, bool) {
	username := gjson.Get(data, "username").Str
	if username == "" {
		return RawUserDocument{}, false
	}

	doc := RawUserDocument{
		Username:     username,
		AgentVersion: gjson.Get(data, "agent_version").Str,
	}

	gjson.Get(data, "dates").ForEach(
		func(_, entry gjson.Result) bool {
			date := entry.Get("date").Str
			if date == "" {
				return true
			}
			de := RawDateEntry{Date: date}
			entry.Get("sessions").ForEach(
				func(_, sess gjson.Result) bool {
					de.Sessions = append(
						de.Sessions, parseRawSession(sess),
					)
					return true
				})
			doc.Dates = append(doc.Dates, de)
			return true
		})
	return doc, true
}

// counterOr returns the integer counter at path, or def when
// the field is absent. Non-numeric values read as 0, which the
// normalizer then treats as an explicit value.
func counterOr(sess gjson.Result, path string, def int) int {
	v := sess.Get(path)
	if !v.Exists() {
		return def
	}
	return int(v.Int())
}

// parseRawSession decodes a single session object, preserving
// absent counters as AbsentCounter for the normalizer.
func parseRawSession(sess gjson.Result) RawSession {
	raw := RawSession{
		SessionID:    sess.Get("session_id").Str,
		StartTime:    sess.Get("start_time").Str,
		EndTime:      sess.Get("end_time").Str,
		SessionShift: sess.Get("session_shift").Str,

		ProductiveTime: counterOr(
			sess, "productive_time", AbsentCounter,
		),
		NeutralTime: counterOr(
			sess, "neutral_time", AbsentCounter,
		),
		WastedTime: counterOr(
			sess, "wasted_time", AbsentCounter,
		),
		IdleTime: counterOr(sess, "idle_time", AbsentCounter),
	}

	if tt := sess.Get("total_time"); tt.Exists() {
		raw.TotalTime = int(tt.Int())
		raw.HasTotalTime = true
	}

	usage := sess.Get("usage_breakdown")
	if usage.Exists() && usage.IsObject() {
		raw.UsageBreakdown = make(map[string]map[string]UsageEntry)
		usage.ForEach(func(cat, items gjson.Result) bool {
			if !items.IsObject() {
				// Preserve the malformed category with a nil
				// map; the normalizer flags it.
				raw.UsageBreakdown[cat.Str] = nil
				return true
			}
			m := make(map[string]UsageEntry)
			items.ForEach(func(app, entry gjson.Result) bool {
				ue := UsageEntry{
					TotalTime: int(entry.Get("total_time").Int()),
				}
				entry.Get("visits").ForEach(
					func(_, visit gjson.Result) bool {
						ue.Visits = append(ue.Visits, visit.Str)
						return true
					})
				m[app.Str] = ue
				return true
			})
			raw.UsageBreakdown[cat.Str] = m
			return true
		})
	}
	return raw
}
