package service

import (
	"path"
	"regexp"
	"strings"

	"github.com/v-yash/jarvis/pkg/apierror"
)

// shellMetaChars triggers shell interpretation when present anywhere in the command.
const shellMetaChars = "|&><;`$"

// DefaultDeniedPrefixes blocks database clients and tools that reach outside the pod.
var DefaultDeniedPrefixes = []string{
	"psql", "mysql", "mongo", "mongosh", "redis-cli",
	"curl", "wget", "ssh", "scp", "nc", "ncat", "telnet",
}

// DefaultAllowedBinaries are read-mostly diagnostics.
var DefaultAllowedBinaries = []string{
	"ls", "cat", "head", "tail", "grep", "wc", "find", "stat",
	"df", "du", "free", "ps", "top", "uptime", "date", "hostname",
	"whoami", "id", "netstat", "ss", "nslookup", "dig", "ping",
	"echo", "sort", "uniq",
}

// credentialPatterns are searched case-insensitively over the joined command.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)passw(or)?d\s*=`),
	regexp.MustCompile(`(?i)secret\s*=`),
	regexp.MustCompile(`(?i)token\s*=`),
	regexp.MustCompile(`(?i)api[_-]?key\s*=`),
	regexp.MustCompile(`(?i)export\s+\S*(password|secret|token)`),
	regexp.MustCompile(`(?i)aws_secret_access_key`),
}

// sensitivePathFragments should never appear in exec arguments.
var sensitivePathFragments = []string{
	"/etc/shadow", "/etc/master.passwd",
	"/proc/self/environ", "/proc/1/environ",
	"/.ssh/", "/.kube/config",
	"/var/run/secrets",
}

// segmentSeparator splits a command line into the simple commands a shell would run.
var segmentSeparator = regexp.MustCompile("\\|\\||&&|[|;&\n`]|\\$\\(")

type SanitizerConfig struct {
	// AllowedBinaries is the primary control. Empty disables the allow-list.
	AllowedBinaries []string
	DeniedPrefixes  []string
	// AllowShell permits commands containing shell metacharacters; they run under sh -c.
	AllowShell bool
}

// SanitizedCommand is the argv to run inside the container.
type SanitizedCommand struct {
	Argv  []string
	Shell bool
}

// Sanitizer screens exec commands before they reach a pod. It is a layer of
// defense in depth, not a sandbox: anything it lets through runs with the
// container's privileges.
type Sanitizer struct {
	allowed    map[string]bool
	denied     []string
	allowShell bool
}

func NewSanitizer(cfg SanitizerConfig) *Sanitizer {
	denied := make([]string, 0, len(cfg.DeniedPrefixes))
	for _, p := range cfg.DeniedPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			denied = append(denied, p)
		}
	}
	return &Sanitizer{
		allowed:    toSet(cfg.AllowedBinaries),
		denied:     denied,
		allowShell: cfg.AllowShell,
	}
}

// Sanitize returns the argv to execute or a security error naming the rule that matched.
func (s *Sanitizer) Sanitize(tokens []string) (SanitizedCommand, error) {
	joined := strings.TrimSpace(strings.Join(tokens, " "))
	if joined == "" {
		return SanitizedCommand{}, apierror.Security("empty command", "")
	}
	lower := strings.ToLower(joined)
	segments := splitSegments(lower)

	for _, seg := range segments {
		if p, ok := s.deniedPrefix(seg); ok {
			return SanitizedCommand{}, apierror.Security("command not permitted in pods", p)
		}
	}

	for _, re := range credentialPatterns {
		if re.MatchString(joined) {
			return SanitizedCommand{}, apierror.Security("command appears to contain credentials", re.String())
		}
	}

	for _, fragment := range sensitivePathFragments {
		if strings.Contains(lower, fragment) {
			return SanitizedCommand{}, apierror.Security("access to sensitive path", fragment)
		}
	}

	if len(s.allowed) > 0 {
		for _, seg := range segments {
			bin := binaryOf(seg)
			if bin == "" {
				continue
			}
			if !s.allowed[bin] {
				return SanitizedCommand{}, apierror.Security("command not allowed: "+bin, bin)
			}
		}
	}

	if strings.ContainsAny(joined, shellMetaChars) {
		if !s.allowShell {
			return SanitizedCommand{}, apierror.Security("shell syntax not permitted", shellMetaChars)
		}
		return SanitizedCommand{Argv: []string{"sh", "-c", joined}, Shell: true}, nil
	}

	return SanitizedCommand{Argv: append([]string(nil), tokens...)}, nil
}

func (s *Sanitizer) deniedPrefix(segment string) (string, bool) {
	bin := binaryOf(segment)
	for _, p := range s.denied {
		if bin == p || segment == p || strings.HasPrefix(segment, p+" ") {
			return p, true
		}
	}
	return "", false
}

func splitSegments(cmd string) []string {
	parts := segmentSeparator.Split(cmd, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), "()"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// binaryOf returns the base name of the first word, skipping VAR=value assignments.
func binaryOf(segment string) string {
	for _, f := range strings.Fields(segment) {
		if strings.Contains(f, "=") && !strings.HasPrefix(f, "/") {
			continue
		}
		if strings.HasPrefix(f, ">") || strings.HasPrefix(f, "<") {
			return ""
		}
		return path.Base(strings.TrimRight(f, ")"))
	}
	return ""
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[strings.ToLower(item)] = true
	}
	return s
}
