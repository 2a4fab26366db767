package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Agents []Persona `yaml:"agents"`
}

// LoadRoster reads a YAML seed file of the form `agents: [...]`. Entries with
// a behavior but no instruction get the standard system prompt.
func LoadRoster(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

func ParseRoster(data []byte) ([]Persona, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("%w: roster has no agents", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(f.Agents))
	for i := range f.Agents {
		p := &f.Agents[i]
		if strings.TrimSpace(p.Instruction) == "" && strings.TrimSpace(p.Behavior) != "" {
			p.Instruction = SystemPrompt(p.Name, p.Behavior)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalid, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return f.Agents, nil
}

// WidgetSnippet renders the embeddable script tag exported from the dashboard.
func WidgetSnippet(p Persona) string {
	return fmt.Sprintf(`<script>
  window.ArgentoHub = {
    agentId: %q,
    apiKey: "YOUR_API_KEY",
    accent: "Porteño"
  };
</script>
<script src="https://cdn.argentohub.pro/widget.js" async></script>`, p.ID)
}
