package rules

import (
	"fmt"
	"regexp"
	"strings"

	"klaxon/internal/config"
	"klaxon/pkg/errors"
)

// Set is the immutable matching configuration for the process lifetime.
// Patterns are compiled once here; an invalid pattern is a fatal
// configuration error, never a per-message one.
type Set struct {
	keywords   []string
	patterns   []*regexp.Regexp
	rawPattern []string
	allowlist  map[string]struct{}
	blocklist  map[string]struct{}
	ignoreBots bool
}

func New(cfg config.RulesConfig) (*Set, error) {
	s := &Set{
		keywords:   make([]string, 0, len(cfg.Keywords)),
		patterns:   make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		rawPattern: make([]string, 0, len(cfg.Patterns)),
		allowlist:  make(map[string]struct{}, len(cfg.ChannelAllowlist)),
		blocklist:  make(map[string]struct{}, len(cfg.ChannelBlocklist)),
		ignoreBots: cfg.IgnoreBots,
	}

	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		s.keywords = append(s.keywords, kw)
	}

	for _, raw := range cfg.Patterns {
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, errors.ErrConfig.
				WithMessage(fmt.Sprintf("invalid keyword pattern %q", raw)).
				WithCause(err)
		}
		s.patterns = append(s.patterns, re)
		s.rawPattern = append(s.rawPattern, raw)
	}

	for _, c := range cfg.ChannelAllowlist {
		if c = strings.TrimSpace(c); c != "" {
			s.allowlist[c] = struct{}{}
		}
	}
	for _, c := range cfg.ChannelBlocklist {
		if c = strings.TrimSpace(c); c != "" {
			s.blocklist[c] = struct{}{}
		}
	}

	return s, nil
}

func (s *Set) Keywords() []string {
	out := make([]string, len(s.keywords))
	copy(out, s.keywords)
	return out
}

func (s *Set) Patterns() []string {
	out := make([]string, len(s.rawPattern))
	copy(out, s.rawPattern)
	return out
}

func (s *Set) IgnoreBots() bool {
	return s.ignoreBots
}

func (s *Set) AllowlistSize() int {
	return len(s.allowlist)
}

// ChannelAllowed applies the channel filter. A blocklist hit, by ID or by
// display name, rejects regardless of the allowlist: explicit exclusion wins.
// A non-empty allowlist then requires membership; otherwise every channel
// passes.
func (s *Set) ChannelAllowed(id, name string) bool {
	if s.listed(s.blocklist, id, name) {
		return false
	}
	if len(s.allowlist) > 0 {
		return s.listed(s.allowlist, id, name)
	}
	return true
}

func (s *Set) listed(set map[string]struct{}, id, name string) bool {
	if _, ok := set[id]; ok && id != "" {
		return true
	}
	if _, ok := set[name]; ok && name != "" {
		return true
	}
	return false
}
