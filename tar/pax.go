package tar

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPAX reports a PAX extended-header record that is not a
// well-formed "LENGTH KEY=VALUE\n" line.
var ErrMalformedPAX = errors.New("tar: malformed PAX record")

// parsePAXRecords splits a PAX extended-header payload (spec §4.8) into
// its key/value records. Every record is retained, recognized or not;
// applyPAXRecords later interprets the ones this library understands.
func parsePAXRecords(body []byte) (map[string]string, error) {
	records := map[string]string{}
	for len(body) > 0 {
		sp := indexByte(body, ' ')
		if sp < 0 {
			return nil, ErrMalformedPAX
		}
		length, err := strconv.Atoi(string(body[:sp]))
		if err != nil || length <= sp {
			return nil, ErrMalformedPAX
		}
		if length > len(body) {
			return nil, ErrMalformedPAX
		}
		record := body[sp+1 : length]
		if len(record) == 0 || record[len(record)-1] != '\n' {
			return nil, ErrMalformedPAX
		}
		kv := record[:len(record)-1]
		eq := indexByte(kv, '=')
		if eq < 0 {
			return nil, ErrMalformedPAX
		}
		key := string(kv[:eq])
		value := string(kv[eq+1:])
		records[key] = value
		body = body[length:]
	}
	return records, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// applyPAXRecords overlays recognized PAX keys onto hdr. Unrecognized
// keys remain only in hdr.PAXRecords.
func applyPAXRecords(hdr *Header, records map[string]string) {
	for key, value := range records {
		switch key {
		case "path":
			hdr.Name = value
		case "linkpath":
			hdr.Linkname = value
		case "size":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				hdr.Size = v
			}
		case "mtime":
			if t, ok := parsePAXTime(value); ok {
				hdr.ModTime = t
			}
		case "atime":
			if t, ok := parsePAXTime(value); ok {
				hdr.AccessTime = t
			}
		case "ctime":
			if t, ok := parsePAXTime(value); ok {
				hdr.ChangeTime = t
			}
		case "uid":
			if v, err := strconv.Atoi(value); err == nil {
				hdr.UID = v
			}
		case "gid":
			if v, err := strconv.Atoi(value); err == nil {
				hdr.GID = v
			}
		case "uname":
			hdr.Uname = value
		case "gname":
			hdr.Gname = value
		}
	}
}

// parsePAXTime parses PAX's "seconds[.fraction]" timestamp format.
func parsePAXTime(s string) (time.Time, bool) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nanos int64
	if hasFrac {
		for len(frac) < 9 {
			frac += "0"
		}
		frac = frac[:9]
		nanos, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Unix(secs, nanos).UTC(), true
}
