package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/viralforge/socmed/platform/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Invalidate cached read models",
}

var cacheBumpCmd = &cobra.Command{
	Use:   "bump [scope]",
	Short: "Bump a list scope's version so every cached page of it is recomputed",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheBump,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [scope...]",
	Short: "Delete every cached key of the given scopes and post details",
	Long:  `Scans and deletes keys. Without arguments every known scope is purged.`,
	RunE:  runCachePurge,
}

var knownScopes = []string{cache.ScopePosts, cache.ScopeSearch}

func init() {
	cacheCmd.AddCommand(cacheBumpCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openInvalidator(cmd *cobra.Command, cfg cache.InvalidatorConfig) (*cache.Invalidator, func() error, error) {
	s, err := loadSettings(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Cache.Validate(); err != nil {
		return nil, nil, fmt.Errorf("cache config: %w", err)
	}
	store, closeStore, err := openStore(cmd.Context(), s.Cache)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewInvalidator(store, cache.NewKeys(s.Cache.Namespace), cfg, newLogger(cmd)), closeStore, nil
}

func checkScopes(scopes []string) error {
	for _, scope := range scopes {
		if !slices.Contains(knownScopes, scope) {
			return fmt.Errorf("unknown scope %q (known: %v)", scope, knownScopes)
		}
	}
	return nil
}

func runCacheBump(cmd *cobra.Command, args []string) error {
	scope := args[0]
	if err := checkScopes(args); err != nil {
		return err
	}
	inv, closeStore, err := openInvalidator(cmd, cache.InvalidatorConfig{Mode: cache.ModeVersioned})
	if err != nil {
		return err
	}
	defer closeStore()

	version, err := inv.BumpScope(cmd.Context(), scope)
	if err != nil {
		return fmt.Errorf("bump %s: %w", scope, err)
	}
	cmd.Printf("Scope %s is now at version %d\n", scope, version)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	scopes := args
	if len(scopes) == 0 {
		scopes = knownScopes
	}
	if err := checkScopes(scopes); err != nil {
		return err
	}
	cfg := cache.InvalidatorConfig{Mode: cache.ModePattern, Scopes: scopes}
	if slices.Contains(scopes, cache.ScopePosts) {
		cfg.DetailKind = "post"
	}
	inv, closeStore, err := openInvalidator(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := inv.Purge(cmd.Context())
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	cmd.Printf("Deleted %d keys\n", n)
	return nil
}
