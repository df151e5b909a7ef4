package messages

import (
	"context"
	"errors"
	"strings"

	"github.com/spigell/hh-autoapply/internal/ai"
	"github.com/spigell/hh-autoapply/internal/headhunter"
)

// Provider composes the cover letter for a vacancy.
type Provider interface {
	Message(ctx context.Context, vacancy *headhunter.Vacancy, values Placeholders) (string, error)
}

// Required reports whether a vacancy gets a cover letter at all.
func Required(vacancy *headhunter.Vacancy, force bool) bool {
	return force || vacancy.ResponseLetterRequired
}

// TemplateProvider renders a random template from the pool.
type TemplateProvider struct {
	pool *Pool
	rnd  Rand
}

func NewTemplateProvider(pool *Pool, rnd Rand) *TemplateProvider {
	if pool == nil {
		pool = DefaultPool()
	}
	if rnd == nil {
		rnd = DefaultRand
	}
	return &TemplateProvider{pool: pool, rnd: rnd}
}

func (p *TemplateProvider) Message(_ context.Context, vacancy *headhunter.Vacancy, values Placeholders) (string, error) {
	template := Spin(p.pool.pick(p.rnd), p.rnd)

	rendered, err := Render(template, values.WithVacancy(vacancy.Name))
	if err != nil {
		return "", err
	}

	return Unescape(rendered), nil
}

// AIProvider asks a chat session to write the letter from the prompt and the vacancy name.
type AIProvider struct {
	session ai.ChatSession
	prompt  string
}

func NewAIProvider(session ai.ChatSession, prompt string) *AIProvider {
	return &AIProvider{session: session, prompt: prompt}
}

func (p *AIProvider) Message(ctx context.Context, vacancy *headhunter.Vacancy, _ Placeholders) (string, error) {
	if p.session == nil {
		return "", &ai.Error{Provider: "ai", Err: errors.New("chat session is not configured")}
	}

	text, err := p.session.SendMessage(ctx, p.prompt+"\n"+vacancy.Name)
	if err != nil {
		var aiErr *ai.Error
		if errors.As(err, &aiErr) {
			return "", err
		}
		return "", &ai.Error{Provider: "ai", Err: err}
	}

	if strings.TrimSpace(text) == "" {
		return "", &ai.Error{Provider: "ai", Err: errors.New("empty message generated")}
	}

	return text, nil
}
