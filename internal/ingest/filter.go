package ingest

import (
	"regexp"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// effectiveKind applies the check's filter policy to the requested kind.
// Filtered-out pings are recorded as ign so the history still shows them.
func effectiveKind(check *models.Check, opts Options) string {
	// A nonzero exit status reported by the client means the run failed,
	// whatever endpoint it hit.
	if opts.ExitStatus != nil && *opts.ExitStatus > 0 {
		return models.PingFail
	}

	if opts.Method != "" && !check.AllowsMethod(opts.Method) {
		return models.PingIgn
	}

	if opts.Scheme == "email" {
		return classifyEmail(check, opts)
	}

	return opts.Kind
}

// classifyEmail derives the ping kind of an inbound email from the check's
// subject regex and keyword lists.
func classifyEmail(check *models.Check, opts Options) string {
	if check.Subject != "" {
		re, err := regexp.Compile(check.Subject)
		if err != nil || !re.MatchString(opts.Subject) {
			return models.PingIgn
		}
	}

	if !check.FilterSubject && !check.FilterBody {
		return opts.Kind
	}

	var haystack []string
	if check.FilterSubject {
		haystack = append(haystack, opts.Subject)
	}
	if check.FilterBody {
		haystack = append(haystack, string(opts.Body))
	}

	// Failure keywords win over success, success over start, matching the
	// severity order an operator expects.
	if matchesKeywords(check.FailureKw, haystack) {
		return models.PingFail
	}
	if matchesKeywords(check.SuccessKw, haystack) {
		return models.PingSuccess
	}
	if matchesKeywords(check.StartKw, haystack) {
		return models.PingStart
	}
	return models.PingIgn
}

func matchesKeywords(kwList string, haystack []string) bool {
	if kwList == "" {
		return false
	}
	for _, kw := range strings.Split(kwList, ",") {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		for _, text := range haystack {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
