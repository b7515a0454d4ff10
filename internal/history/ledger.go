package history

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/klauern/docsync/internal/model"
)

const (
	ledgerHeader = "# docsync ledger v1"
	recordPrefix = "-- history: "
)

// Serialize renders entries as ledger text. Parse(Serialize(x)) returns x.
func Serialize(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString(ledgerHeader)
	sb.WriteString("\n")
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(recordPrefix)
		sb.WriteString(escape(e.Path))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "version: %d\n", e.Edit.Version)
		fmt.Fprintf(&sb, "operation: %s\n", e.Edit.Operation)
		if !e.Edit.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "timestamp: %s\n", e.Edit.Timestamp.UTC().Format(time.RFC3339Nano))
		}
		if e.Edit.Author != "" {
			fmt.Fprintf(&sb, "author: %s\n", escape(e.Edit.Author))
		}
		if e.Edit.SrcCR != nil {
			fmt.Fprintf(&sb, "src-cr: %d\n", *e.Edit.SrcCR)
		}
		if e.Edit.Message != "" {
			fmt.Fprintf(&sb, "message: %s\n", escape(e.Edit.Message))
		}
	}
	return sb.String()
}

// Parse reads ledger text. Empty text is an empty log.
func Parse(text string) ([]Entry, error) {
	var (
		entries []Entry
		cur     *Entry
		seen    map[string]bool
		lineNo  int
	)

	flush := func() error {
		if cur == nil {
			return nil
		}
		if !seen["version"] || !seen["operation"] {
			return fmt.Errorf("%w: record for %q missing version or operation", ErrMalformedLedger, cur.Path)
		}
		entries = append(entries, *cur)
		cur = nil
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, recordPrefix):
			if err := flush(); err != nil {
				return nil, err
			}
			p, err := unescape(strings.TrimPrefix(line, recordPrefix))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLedger, lineNo, err)
			}
			cur = &Entry{Path: p}
			seen = make(map[string]bool)
		default:
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: field outside of a record", ErrMalformedLedger, lineNo)
			}
			key, value, ok := strings.Cut(line, ": ")
			if !ok {
				key, value, ok = strings.Cut(line, ":")
			}
			if !ok {
				return nil, fmt.Errorf("%w: line %d: expected key: value", ErrMalformedLedger, lineNo)
			}
			if seen[key] {
				return nil, fmt.Errorf("%w: line %d: duplicate field %q", ErrMalformedLedger, lineNo, key)
			}
			seen[key] = true
			if err := setField(&cur.Edit, key, value); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLedger, lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLedger, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func setField(edit *model.FileEdit, key, value string) error {
	switch key {
	case "version":
		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return fmt.Errorf("bad version %q", value)
		}
		edit.Version = int32(v)
	case "operation":
		op, err := model.ParseFileOperation(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		edit.Operation = op
	case "timestamp":
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("bad timestamp %q", value)
		}
		edit.Timestamp = ts
	case "author":
		s, err := unescape(value)
		if err != nil {
			return err
		}
		edit.Author = s
	case "message":
		s, err := unescape(value)
		if err != nil {
			return err
		}
		edit.Message = s
	case "src-cr":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("bad src-cr %q", value)
		}
		edit.SrcCR = &n
	default:
		return fmt.Errorf("unknown field %q", key)
	}
	return nil
}

func escape(s string) string {
	if !strings.ContainsAny(s, "\\\n\r") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		i++
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			return "", fmt.Errorf("unknown escape \\%c in %q", s[i], s)
		}
	}
	return sb.String(), nil
}
