package scraper

import (
	"embed"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig resolves the selectors in this order:
//  1. overridePath, when non-empty (lets selectors be patched without a rebuild)
//  2. the embedded selectors.json
//  3. DefaultSelectors
func LoadConfig(overridePath string) SelectorConfig {
	if overridePath != "" {
		sel, err := LoadSelectors(overridePath)
		if err == nil {
			slog.Info("Loaded selectors from external file", "path", overridePath)
			return sel
		}
		slog.Warn("Failed to load external selectors, trying embedded", "path", overridePath, "error", err)
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Info("Loaded selectors from embedded config")
			return sel
		}
		err = parseErr
	}
	slog.Warn("Embedded selectors unusable, using hardcoded defaults", "error", err)
	return DefaultSelectors()
}
