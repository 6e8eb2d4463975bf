package serp

import (
	"fmt"
	"log/slog"
	"strings"
)

// Options carries the per-engine settings used by New.
type Options struct {
	Getter     Getter
	Logger     *slog.Logger
	Google     GoogleConfig
	Yandex     YandexConfig
	DuckDuckGo DuckDuckGoConfig
	SearXNG    SearXNGConfig
}

// Names lists the engines New can build.
func Names() []string {
	return []string{NameGoogle, NameYandex, NameDuckDuckGo, NameSearXNG}
}

// New builds the engine registered under name.
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameGoogle:
		return NewGoogle(opts.Getter, opts.Google, opts.Logger), nil
	case NameYandex:
		return NewYandex(opts.Getter, opts.Yandex, opts.Logger), nil
	case NameDuckDuckGo:
		return NewDuckDuckGo(opts.Getter, opts.DuckDuckGo, opts.Logger), nil
	case NameSearXNG:
		p, err := NewSearXNG(opts.Getter, opts.SearXNG, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", NameSearXNG, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
