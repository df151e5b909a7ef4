package messages

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/hh-autoapply/internal/headhunter"
)

// ErrMissingPlaceholder is returned when a template references an unknown key.
var ErrMissingPlaceholder = errors.New("missing template placeholder")

const (
	KeyFirstName   = "first_name"
	KeyLastName    = "last_name"
	KeyEmail       = "email"
	KeyPhone       = "phone"
	KeyResumeTitle = "resume_title"
	KeyVacancyName = "vacancy_name"
)

var (
	placeholderExpr = regexp.MustCompile(`%%|%\((\w+)\)s`)
	// Innermost alternatives group, e.g. {a|b}.
	spinExpr = regexp.MustCompile(`\{([^{}]*\|[^{}]*)\}`)
)

// Rand picks an integer in [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand uses the process-wide random source.
var DefaultRand Rand = globalRand{}

// Placeholders are the values substituted into templates.
type Placeholders map[string]string

func NewPlaceholders(user *headhunter.User, resume *headhunter.Resume) Placeholders {
	p := Placeholders{
		KeyFirstName:   "",
		KeyLastName:    "",
		KeyEmail:       "",
		KeyPhone:       "",
		KeyResumeTitle: "",
	}
	if user != nil {
		p[KeyFirstName] = user.FirstName
		p[KeyLastName] = user.LastName
		p[KeyEmail] = user.Email
		p[KeyPhone] = user.Phone
	}
	if resume != nil {
		p[KeyResumeTitle] = resume.Title
	}
	return p
}

// WithVacancy returns a copy carrying the vacancy name.
func (p Placeholders) WithVacancy(name string) Placeholders {
	out := maps.Clone(p)
	if out == nil {
		out = Placeholders{}
	}
	out[KeyVacancyName] = name
	return out
}

// Render substitutes %(key)s placeholders. %% is a literal percent.
func Render(template string, values Placeholders) (string, error) {
	var missing []string
	out := placeholderExpr.ReplaceAllStringFunc(template, func(m string) string {
		if m == "%%" {
			return "%"
		}
		key := m[2 : len(m)-2]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingPlaceholder, strings.Join(missing, ", "))
	}

	return out, nil
}

// Spin expands {a|b|c} groups to one random alternative, innermost first.
func Spin(template string, rnd Rand) string {
	for {
		loc := spinExpr.FindStringSubmatchIndex(template)
		if loc == nil {
			return template
		}
		options := strings.Split(template[loc[2]:loc[3]], "|")
		template = template[:loc[0]] + options[rnd.IntN(len(options))] + template[loc[1]:]
	}
}

// Unescape turns literal escape sequences such as \n into real characters.
// Invalid sequences are kept as written.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	for len(s) > 0 {
		i := strings.IndexByte(s, '\\')
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		s = s[i:]

		value, _, tail, err := strconv.UnquoteChar(s, quoteOf(s))
		if err != nil {
			b.WriteByte('\\')
			s = s[1:]
			continue
		}
		b.WriteRune(value)
		s = tail
	}

	return b.String()
}

// quoteOf lets UnquoteChar accept an escaped quote at the start of s.
func quoteOf(s string) byte {
	if len(s) > 1 && (s[1] == '"' || s[1] == '\'') {
		return s[1]
	}
	return 0
}
