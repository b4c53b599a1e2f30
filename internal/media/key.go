package media

import (
	"path"
	"strconv"
	"strings"
	"time"
)

const maxNameLen = 100

// ObjectKey builds the storage key "<unix-millis>-<name>" for an upload.
// The name keeps letters, digits, dots, dashes and underscores; everything
// else becomes "_".
func ObjectKey(now time.Time, filename string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + SanitizeName(filename)
}

func SanitizeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxNameLen {
			break
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}

// Prepare validates an upload and returns the bytes to store together with
// the detected content type.
func Prepare(data []byte) ([]byte, Detected, error) {
	detected, err := Detect(data)
	if err != nil {
		return nil, Detected{}, err
	}
	if detected.Kind == KindSVG {
		clean, err := SanitizeSVG(data)
		if err != nil {
			return nil, Detected{}, err
		}
		return clean, detected, nil
	}
	return data, detected, nil
}
