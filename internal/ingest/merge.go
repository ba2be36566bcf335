package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
)

// uploadMetadataKey is the reserved key under which an upload's own metadata
// is nested inside every chunk's metadata object.
const uploadMetadataKey = "upload_metadata"

// parseObject parses raw JSON into a map when it is a valid JSON object.
// Anything else (empty, malformed, a bare scalar, an array) yields nil.
func parseObject(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// mergeUploadMetadata applies the upload-metadata merge rule to one chunk's
// metadata field. The chunk's current metadata is parsed as a JSON object
// (defaulting to empty on absence or parse failure; parse errors never
// propagate). When the upload metadata parses as an object, it is nested
// under the upload_metadata key; otherwise that key is removed. An empty
// result is represented as "" so the store persists null rather than "{}".
func mergeUploadMetadata(chunkMetadata, uploadMetadata string) string {
	meta := parseObject(chunkMetadata)
	if meta == nil {
		meta = map[string]any{}
	}

	if um := parseObject(uploadMetadata); um != nil {
		meta[uploadMetadataKey] = um
	} else {
		delete(meta, uploadMetadataKey)
	}

	if len(meta) == 0 {
		return ""
	}
	out, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(out)
}

// promoteSummary canonicalizes a chunk's summary. A chunk that already
// carries a non-blank summary keeps it. Otherwise metadata's keys are
// scanned in document order for a key whose name contains "summary"
// (case-insensitive) and whose value renders as a non-blank string; the
// first hit becomes the chunk summary. This lets an enricher stash a
// summary under a pipeline-specific key and still have it surface
// canonically.
//
// Callers pass the chunk's pre-merge metadata serialization: the upload
// merge re-marshals through a map and alphabetizes keys, while the
// enrichers' insertion order is what decides which summary key wins. The
// merge only ever adds or removes the upload_metadata key, which never
// matches "summary", so the scan sees the same candidates either way.
func promoteSummary(c *Chunk, metadata string) {
	if strings.TrimSpace(c.Summary) != "" {
		return
	}
	if s, ok := firstSummaryValue(metadata); ok {
		c.Summary = s
	}
}

// firstSummaryValue walks the top-level keys of a serialized JSON object in
// document order, looking for the first summary-named key with a scalar
// value that renders non-blank.
func firstSummaryValue(metadata string) (string, bool) {
	if strings.TrimSpace(metadata) == "" {
		return "", false
	}

	dec := json.NewDecoder(strings.NewReader(metadata))
	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", false
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", false
		}
		key, ok := keyTok.(string)
		if !ok {
			return "", false
		}

		if !strings.Contains(strings.ToLower(key), "summary") {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return "", false
			}
			continue
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return "", false
		}
		if s, ok := scalarString(val); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// scalarString renders a decoded JSON scalar as a string. Objects, arrays
// and nulls do not convert.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}
