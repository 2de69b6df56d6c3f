package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Create a config.yaml interactively.

You will be prompted for:
  - Metadata backend and connection URL
  - Storage directory
  - HTTP port

An existing config file is only overwritten after confirmation.`,
	RunE: runInit,
}

var initOutput string

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "path of the config file to write")
	rootCmd.AddCommand(initCmd)
}

// initConfig mirrors the config file layout; only the prompted keys are
// written, everything else keeps its default.
type initConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Metadata struct {
		Type string `yaml:"type"`
		URL  string `yaml:"url"`
	} `yaml:"metadata"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

func runInit(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(initOutput); err == nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("'%s' already exists. Overwrite it", initOutput),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	backendSelect := promptui.Select{
		Label: "Metadata backend",
		Items: []string{"redis", "sqlite", "postgres", "memory"},
	}
	_, backend, err := backendSelect.Run()
	if err != nil {
		return fmt.Errorf("select backend: %w", err)
	}

	var cfg initConfig
	cfg.Metadata.Type = backend

	if backend != "memory" {
		urlPrompt := promptui.Prompt{
			Label:   "Connection URL",
			Default: defaultURLFor(backend),
			Validate: func(input string) error {
				if input == "" {
					return errors.New("connection URL cannot be empty")
				}
				return nil
			},
		}
		cfg.Metadata.URL, err = urlPrompt.Run()
		if err != nil {
			return fmt.Errorf("prompt url: %w", err)
		}
	}

	storagePrompt := promptui.Prompt{
		Label:   "Storage directory",
		Default: "./storage",
		Validate: func(input string) error {
			if input == "" {
				return errors.New("storage directory cannot be empty")
			}
			return nil
		},
	}
	cfg.Storage.Path, err = storagePrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt storage path: %w", err)
	}

	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: "8080",
		Validate: func(input string) error {
			p, convErr := strconv.Atoi(input)
			if convErr != nil || p < 1 || p > 65535 {
				return errors.New("port must be 1-65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return fmt.Errorf("prompt port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(initOutput, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", initOutput)
	return nil
}

func defaultURLFor(backend string) string {
	switch backend {
	case "redis":
		return "redis://localhost:6379/0"
	case "sqlite":
		return "deaddrop.db"
	case "postgres":
		return "postgres://localhost:5432/deaddrop"
	default:
		return ""
	}
}
