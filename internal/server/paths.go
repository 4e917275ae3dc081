package server

import (
	"path"
	"regexp"
	"strings"
)

var (
	fileNameRE = regexp.MustCompile(`[^.a-zA-Z0-9_-]`)
	dirNameRE  = regexp.MustCompile(`[^.a-zA-Z0-9_/-]`)
)

const csmilSuffix = ".csmil"

func sanitizeFile(name string) string {
	return fileNameRE.ReplaceAllString(name, "")
}

func sanitizeDir(dir string) string {
	return strings.Trim(dirNameRE.ReplaceAllString(dir, ""), "/")
}

// csmilRequest is a parsed multi-rendition master request.
type csmilRequest struct {
	group      string
	keys       []string
	masterName string
}

// parseCSMIL splits "<dirs>/<prefix>,<v1>,...,<suffix>" into unit keys
// "<dirs>/<prefix><vN><suffix>". At least one variant is required.
func parseCSMIL(set string) (csmilRequest, bool) {
	dirPart, filePart := path.Split(set)
	chunks := strings.Split(filePart, ",")
	if len(chunks) < 3 {
		return csmilRequest{}, false
	}
	for i := range chunks {
		chunks[i] = sanitizeFile(chunks[i])
	}
	var dirs []string
	for _, d := range strings.Split(dirPart, "/") {
		if d = sanitizeFile(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	group := strings.Join(dirs, "/")
	prefix, suffix := chunks[0], chunks[len(chunks)-1]
	keys := make([]string, 0, len(chunks)-2)
	for _, bitrate := range chunks[1 : len(chunks)-1] {
		keys = append(keys, path.Join(group, prefix+bitrate+suffix))
	}
	return csmilRequest{
		group:      group,
		keys:       keys,
		masterName: strings.Join(chunks, ","),
	}, true
}
