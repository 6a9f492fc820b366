package guard

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// parseFrontmatterStatus extracts the status key from the YAML frontmatter
// block at the top of a document. Returns ok=false when the document has no
// frontmatter or the block has no status key.
func parseFrontmatterStatus(doc string) (status string, ok bool, err error) {
	block, _, _, found := splitFrontmatter(doc)
	if !found {
		return "", false, nil
	}

	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return "", false, fmt.Errorf("parse frontmatter: %w", err)
	}

	raw, present := meta["status"]
	if !present {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", false, fmt.Errorf("frontmatter status is %T, want string", raw)
	}
	return s, true, nil
}

// rewriteFrontmatterStatus replaces only the status value inside the
// frontmatter block, leaving every other line byte-for-byte intact,
// including the document's own line endings. If the block has no status
// key yet, one is appended at the end of the block.
func rewriteFrontmatterStatus(doc, status string) (string, error) {
	block, body, eol, found := splitFrontmatter(doc)
	if !found {
		// Never written: synthesize a minimal block in front of the document.
		return frontmatterDelimiter + eol + "status: " + status + eol + frontmatterDelimiter + eol + doc, nil
	}

	lines := strings.Split(block, eol)
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "status:") && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			lines[i] = "status: " + status
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, "status: "+status)
	}

	var sb strings.Builder
	sb.WriteString(frontmatterDelimiter)
	sb.WriteString(eol)
	sb.WriteString(strings.Join(lines, eol))
	sb.WriteString(eol)
	sb.WriteString(frontmatterDelimiter)
	sb.WriteString(eol)
	sb.WriteString(body)
	return sb.String(), nil
}

// splitFrontmatter splits a document into its frontmatter block (without
// delimiters) and the remaining body, both with the document's original
// line endings intact. eol is the detected line ending, "\n" for an empty
// document. found is false when the document does not start with a
// frontmatter block.
func splitFrontmatter(doc string) (block, body, eol string, found bool) {
	eol = "\n"
	if i := strings.IndexByte(doc, '\n'); i > 0 && doc[i-1] == '\r' {
		eol = "\r\n"
	}
	if !strings.HasPrefix(doc, frontmatterDelimiter+eol) {
		return "", doc, eol, false
	}

	rest := doc[len(frontmatterDelimiter)+len(eol):]
	end := strings.Index(rest, eol+frontmatterDelimiter)
	if end < 0 {
		return "", doc, eol, false
	}

	block = rest[:end]
	body = rest[end+len(eol)+len(frontmatterDelimiter):]
	body = strings.TrimPrefix(body, eol)
	return block, body, eol, true
}
