package messages

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var defaultTemplates = []string{
	"Здравствуйте, меня зовут %(first_name)s. Меня заинтересовала вакансия «%(vacancy_name)s».",
	"Прошу рассмотреть мою кандидатуру на вакансию «%(vacancy_name)s».",
}

// Pool is an immutable list of raw message templates.
type Pool struct {
	templates []string
}

func DefaultPool() *Pool {
	return &Pool{templates: append([]string(nil), defaultTemplates...)}
}

// NewPool keeps the non-blank templates, trimmed.
func NewPool(templates ...string) (*Pool, error) {
	pool := &Pool{}
	for _, t := range templates {
		if t = strings.TrimSpace(t); t != "" {
			pool.templates = append(pool.templates, t)
		}
	}

	if len(pool.templates) == 0 {
		return nil, errors.New("message template pool is empty")
	}

	return pool, nil
}

// LoadPool reads one template per line from path. An empty path gives the default pool.
func LoadPool(path string) (*Pool, error) {
	if path == "" {
		return DefaultPool(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open message list: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read message list %s: %w", path, err)
	}

	pool, err := NewPool(lines...)
	if err != nil {
		return nil, fmt.Errorf("message list %s: %w", path, err)
	}

	return pool, nil
}

func (p *Pool) Len() int {
	return len(p.templates)
}

func (p *Pool) Templates() []string {
	return append([]string(nil), p.templates...)
}

func (p *Pool) pick(rnd Rand) string {
	return p.templates[rnd.IntN(len(p.templates))]
}
