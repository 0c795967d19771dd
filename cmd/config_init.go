package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tribunal-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if _, err := os.Stat(path); err == nil {
			return eris.Errorf("%s already exists, refusing to overwrite", path)
		}

		defaults, err := config.Default()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(defaults)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		header := []byte("# tribunal-cli configuration. Every key can also be set via a\n# TRIBUNAL_-prefixed environment variable, e.g. TRIBUNAL_STORE_DATABASE_URL.\n")
		data = append(header, data...)

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrap(err, "write config file")
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
