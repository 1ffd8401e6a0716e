// Package vocab applies clinical vocabulary corrections to transcripts before
// they are analysed, e.g. "hyper tension => hypertension".
//
// A rules file has one rule per line:
//
//	blood pressure medicine => antihypertensive
//	s/\bmg\s*s\b/mg/g
//
// Literal rules match case-insensitively and replace every occurrence. Regex
// rules use sed syntax with any non-alphanumeric delimiter and the flags
// i (default), g, m and s. Blank lines and lines starting with # are ignored.
package vocab

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultIterationLimit = 30

type rule struct {
	re          *regexp.Regexp
	replacement string
	all         bool
}

func (r rule) apply(input string) string {
	if r.all {
		return r.re.ReplaceAllString(input, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	return input[:loc[0]] + string(expanded) + input[loc[1]:]
}

// Corrector rewrites text until no rule changes it or the iteration limit is hit.
type Corrector struct {
	rules []rule
	limit int
}

// Load reads rules from path. A missing or unset path yields a corrector
// that leaves text untouched.
func Load(path string, limit int) (*Corrector, error) {
	if strings.TrimSpace(path) == "" {
		return newCorrector(nil, limit), nil
	}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newCorrector(nil, limit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file %q: %w", path, err)
	}
	c, err := Parse(string(contents), limit)
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary file %q: %w", path, err)
	}
	return c, nil
}

// Parse compiles rules from their text form.
func Parse(contents string, limit int) (*Corrector, error) {
	var rules []rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var (
			r   rule
			err error
		)
		switch {
		case isSedRule(line):
			r, err = parseSed(line)
			if err != nil && strings.Contains(line, "=>") {
				r, err = parseLiteral(line)
			}
		case strings.Contains(line, "=>"):
			r, err = parseLiteral(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, r)
	}
	return newCorrector(rules, limit), nil
}

func newCorrector(rules []rule, limit int) *Corrector {
	if limit <= 0 {
		limit = defaultIterationLimit
	}
	return &Corrector{rules: rules, limit: limit}
}

// Len returns the number of loaded rules.
func (c *Corrector) Len() int { return len(c.rules) }

// Apply implements ports.TranscriptCorrector.
func (c *Corrector) Apply(text string) (string, error) {
	result := text
	for i := 0; i < c.limit; i++ {
		before := result
		for _, r := range c.rules {
			result = r.apply(result)
		}
		if result == before {
			break
		}
	}
	return result, nil
}

func parseLiteral(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return rule{}, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return rule{}, fmt.Errorf("invalid literal source: %w", err)
	}
	// Escape $ so the replacement is taken verbatim.
	replacement := strings.ReplaceAll(strings.TrimSpace(to), "$", "$$")
	return rule{re: re, replacement: replacement, all: true}, nil
}

func isSedRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

func parseSed(line string) (rule, error) {
	delim := line[1]
	pattern, rest, err := readDelimited(line[2:], delim)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, rest, err := readDelimited(rest, delim)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex replacement: %w", err)
	}

	flags := "i"
	all := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'i':
		case 'g':
			all = true
		case 'm', 's':
			if !strings.ContainsRune(flags, flag) {
				flags += string(flag)
			}
		case ' ':
		default:
			return rule{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return rule{re: re, replacement: replacement, all: all}, nil
}

// readDelimited returns the text up to the first unescaped delim and the
// remainder after it. Escapes other than \delim are kept for the regexp parser.
func readDelimited(input string, delim byte) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		char := input[i]
		if char == '\\' && i+1 < len(input) {
			next := input[i+1]
			if next != delim {
				b.WriteByte(char)
			}
			b.WriteByte(next)
			i++
			continue
		}
		if char == delim {
			return b.String(), input[i+1:], nil
		}
		b.WriteByte(char)
	}
	return "", "", errors.New("unterminated expression")
}

func isWordOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}
