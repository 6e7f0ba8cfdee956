package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fetcharr/fetcharr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing fetcharr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  fetcharr config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, /etc/fetcharr/config.yaml, $HOME/.fetcharr/config.yaml)
  - Environment variables (FETCHARR_SERVER_PORT, FETCHARR_CATALOG_BASE_URL, etc.)
  - Command-line flags (for some options)

Environment variables use the FETCHARR_ prefix and underscores for nesting.
Example: server.port -> FETCHARR_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map, formatting durations for
// human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	if err := defaultConfig(&cfg); err != nil {
		return fmt.Errorf("loading defaults: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(&cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# fetcharr Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   FETCHARR_SERVER_HOST, FETCHARR_SERVER_PORT")
	fmt.Println("#   FETCHARR_CATALOG_BASE_URL, FETCHARR_CATALOG_SIGNING_KEY")
	fmt.Println("#   FETCHARR_STORAGE_BASE_DIR")
	fmt.Println("#   FETCHARR_LOGGING_LEVEL, FETCHARR_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}

// defaultConfig unmarshals the built-in defaults without consulting any
// config file or the environment.
func defaultConfig(cfg *config.Config) error {
	v := viper.New()
	config.SetDefaults(v)
	return v.Unmarshal(cfg)
}
