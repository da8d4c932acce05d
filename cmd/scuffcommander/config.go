package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scuffcommander/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect config.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml into the config directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")

		dir, err := config.ResolveDir(configDir)
		if err != nil {
			return err
		}
		path, err := config.WriteDefault(dir, force)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random key for the secret setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
		return nil
	},
}

var configSealCmd = &cobra.Command{
	Use:   "seal <password>",
	Short: "Encrypt an OBS password for config.yaml",
	Long: `Encrypts the password with the configured secret (or --secret). Put the
output in the obs.password field; it is decrypted when the config is loaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret = cfg.Secret
		}
		if secret == "" {
			return errors.New("no secret configured: set secret in config.yaml (see 'config secret') or pass --secret")
		}

		sealed, err := config.Seal(secret, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configSecretCmd, configSealCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config.yaml")
	configSealCmd.Flags().String("secret", "", "Hex encoded AES key to use instead of the configured one")
}
