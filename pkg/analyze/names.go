package analyze

import "strings"

// kindExtensions maps oracle kind labels that are not already extensions.
var kindExtensions = map[string]string{
	"python":     "py",
	"golang":     "go",
	"javascript": "js",
	"typescript": "ts",
	"markdown":   "md",
	"shell":      "sh",
	"yaml":       "yml",
	"text":       "txt",
	"plaintext":  "txt",
}

// extensionFor converts an oracle kind label to a filename extension,
// defaulting to .txt for anything unusable.
func extensionFor(kind string) string {
	kind = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(kind)), ".")
	if mapped, ok := kindExtensions[kind]; ok {
		kind = mapped
	}
	if kind == "" || len(kind) > 8 || !alnum(kind) {
		return ".txt"
	}
	return "." + kind
}

func alnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// sanitizeName reduces an oracle-suggested name to filesystem-safe
// characters.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// SuggestedFilename builds "name_hash8.ext": related versions sort
// together by name while the hash prefix keeps every copy unique.
func SuggestedFilename(name, hash, kind string) string {
	base := sanitizeName(name)
	if base == "" {
		base = "content"
	}
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return base + "_" + short + extensionFor(kind)
}
