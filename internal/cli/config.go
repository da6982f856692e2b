package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// initConfig reads in config file and ENV variables if set.
func initConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".perchctl" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".perchctl")
	}

	viper.AutomaticEnv()

	// A missing config file just means the user has not logged in yet.
	_ = viper.ReadInConfig()
}

// saveCredentials persists the daemon address and tokens for later commands.
func saveCredentials(daemonURL, accessToken, refreshToken string) error {
	viper.Set("daemon_url", daemonURL)
	viper.Set("access_token", accessToken)
	viper.Set("refresh_token", refreshToken)

	if err := viper.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return viper.SafeWriteConfig()
		}
		home, _ := os.UserHomeDir()
		path := filepath.Join(home, ".perchctl.yaml")
		return viper.WriteConfigAs(path)
	}
	return nil
}
