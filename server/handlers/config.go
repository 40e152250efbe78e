package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/docscore/config"
)

// ConfigHandler serves the loaded workflow configuration as YAML with the
// API key redacted. ?section=<name> limits the reply to one top-level
// section, e.g. ?section=scoring.
type ConfigHandler struct {
	provider ConfigProvider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(provider ConfigProvider) *ConfigHandler {
	return &ConfigHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.provider.Config()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration loaded")
		return
	}

	v, err := configSection(cfg.Redacted(), r.URL.Query().Get("section"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode config: "+err.Error())
		return
	}
	enc.Close()

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func configSection(cfg config.Config, section string) (any, error) {
	switch section {
	case "":
		return cfg, nil
	case "scoring":
		return cfg.Scoring, nil
	case "openai":
		return cfg.OpenAI, nil
	case "embedding":
		return cfg.Embedding, nil
	case "extraction":
		return cfg.Extraction, nil
	case "monitoring":
		return cfg.Monitoring, nil
	case "logging":
		return cfg.Logging, nil
	}
	return nil, fmt.Errorf("unknown config section %q", section)
}
