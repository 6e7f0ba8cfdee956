package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// languagesFile is the on-disk shape of an external language table.
type languagesFile struct {
	Langs map[string]string `yaml:"langs"`
}

// loadFile merges entries from the configured YAML file into the inline
// table. File entries win on conflict.
func (c *LanguagesConfig) loadFile() error {
	if c.File == "" {
		return nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.File, err)
	}

	var parsed languagesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing %s: %w", c.File, err)
	}

	if c.Table == nil {
		c.Table = make(map[string]string, len(parsed.Langs))
	}
	for code, name := range parsed.Langs {
		c.Table[code] = name
	}
	return nil
}
