package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Environment fallbacks apply only when the flag was not set explicitly.

func envString(cmd *cobra.Command, flag, key string, target *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envBool(cmd *cobra.Command, flag, key string, target *bool) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q (expected true/false): %w", key, v, err)
	}
	*target = parsed
	return nil
}

func envInt(cmd *cobra.Command, flag, key string, target *int) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = parsed
	return nil
}

func envFloat(cmd *cobra.Command, flag, key string, target *float64) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = parsed
	return nil
}

func envDuration(cmd *cobra.Command, flag, key string, target *time.Duration) error {
	if cmd.Flags().Changed(flag) {
		return nil
	}
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = parsed
	return nil
}

// envHours reads a whole number of hours, as in SESSION_DURATION_HOURS=24.
func envHours(cmd *cobra.Command, flag, key string, target *time.Duration) error {
	if cmd.Flags().Changed(flag) || os.Getenv(key) == "" {
		return nil
	}
	var hours int
	if err := envInt(cmd, flag, key, &hours); err != nil {
		return err
	}
	if hours <= 0 {
		return fmt.Errorf("invalid %s value %d: must be positive", key, hours)
	}
	*target = time.Duration(hours) * time.Hour
	return nil
}
