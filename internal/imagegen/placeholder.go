package imagegen

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"widget-backend/internal/config"
)

// Placeholder 不调用任何服务：提示词命中关键字返回固定图片，否则返回默认图片
type Placeholder struct {
	keyword    *regexp.Regexp
	keywordURL string
	defaultURL string
	delay      time.Duration
}

func NewPlaceholder(cfg config.PlaceholderConfig) (*Placeholder, error) {
	p := &Placeholder{
		keywordURL: cfg.KeywordURL,
		defaultURL: cfg.DefaultURL,
		delay:      cfg.Delay,
	}
	if cfg.KeywordPattern != "" {
		re, err := regexp.Compile("(?i)" + cfg.KeywordPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid placeholder keyword pattern: %w", err)
		}
		p.keyword = re
	}
	return p, nil
}

func (p *Placeholder) Generate(ctx context.Context, prompt string) (string, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if p.keyword != nil && p.keyword.MatchString(prompt) {
		return p.keywordURL, nil
	}
	return p.defaultURL, nil
}
