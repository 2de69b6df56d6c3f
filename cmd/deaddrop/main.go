package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deaddrop/deaddrop/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "deaddrop",
	Short:   "Ephemeral encrypted file-drop server",
	Long: `Deaddrop is a small server for one-shot file hand-offs. Clients upload
an encrypted blob and share the returned id; the file self-destructs after
its download limit or time-to-live, whichever comes first.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var configFiles []string
		if cf, _ := cmd.Flags().GetString("config"); cf != "" {
			configFiles = []string{cf}
		}

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("metadata-type", "", "metadata backend: redis, sqlite, postgres, memory (env: DEADDROP_METADATA_TYPE)")
	rootCmd.PersistentFlags().String("metadata-url", "", "metadata connection string (env: DEADDROP_METADATA_URL)")
	rootCmd.PersistentFlags().String("storage-path", "", "blob directory path (default: ./storage, env: DEADDROP_STORAGE_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
