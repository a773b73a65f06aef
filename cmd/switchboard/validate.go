package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every tenant config in the config directory",
	Long: `Parses each <tenant>.yaml in the config directory, applies defaults and
runs the same validation the serve command uses, reporting every broken file.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("config-dir")
		if len(args) > 0 {
			dir = args[0]
		}

		checked, err := runValidate(dir)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d tenant config(s) valid\n", checked)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read config dir: %w", err)
	}

	checked := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return checked, err
		}

		tenantID := strings.TrimSuffix(name, ".yaml")
		if _, err := config.Parse(data, tenantID); err != nil {
			return checked, fmt.Errorf("%s: %w", name, err)
		}
		checked++
	}

	if checked == 0 {
		return 0, fmt.Errorf("no tenant configs found in %s", dir)
	}
	return checked, nil
}
