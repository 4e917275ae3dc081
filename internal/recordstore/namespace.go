package recordstore

import (
	"strings"

	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// DefaultNamespace is used when a caller passes an empty namespace.
const DefaultNamespace = "defaultcache"

// SanitizeNamespace keeps only ASCII letters and digits. changed reports
// whether the result differs from the input. A name with no usable characters
// is rejected.
func SanitizeNamespace(name string) (sanitized string, changed bool, err error) {
	if name == "" {
		return DefaultNamespace, true, nil
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	sanitized = b.String()
	if sanitized == "" {
		return "", true, services.Wrap(services.ErrValidation, "recordstore", "namespace", "no alphanumeric characters in "+quote(name), nil)
	}
	return sanitized, sanitized != name, nil
}

// resolve sanitizes ns, logging when the name changed and when two distinct
// requested names collapse onto one table.
func (s *Store) resolve(ns string) (string, error) {
	sanitized, changed, err := SanitizeNamespace(ns)
	if err != nil {
		return "", err
	}
	if changed && ns != "" {
		logging.WarnWithContext(s.logger, "namespace sanitized", "namespace_sanitized",
			logging.String("requested_namespace", ns),
			logging.String(logging.FieldNamespace, sanitized),
			logging.String(logging.FieldImpact, "records are stored under the sanitized name"),
			logging.String(logging.FieldErrorHint, "use only letters and digits in cache namespace names"),
		)
	}

	s.mu.Lock()
	previous, seen := s.requested[sanitized]
	if !seen {
		s.requested[sanitized] = ns
	}
	s.mu.Unlock()

	if seen && previous != ns {
		logging.WarnWithContext(s.logger, "namespace collision", "namespace_collision",
			logging.String("requested_namespace", ns),
			logging.String("previous_namespace", previous),
			logging.String(logging.FieldNamespace, sanitized),
			logging.Alert("namespace_collision"),
			logging.String(logging.FieldImpact, "records from both namespaces share one table"),
			logging.String(logging.FieldErrorHint, "rename one of the namespaces so they sanitize differently"),
		)
	}
	return sanitized, nil
}

func quote(name string) string {
	return "\"" + name + "\""
}

func tableName(sanitized string) string {
	return quote(sanitized)
}
