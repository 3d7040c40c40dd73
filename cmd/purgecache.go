package cmd

import (
	"github.com/spf13/cobra"
)

var purgeCacheCmd = &cobra.Command{
	Use:   "purgecache",
	Short: "Remove every cache file under the configured cache directory",
	RunE:  runPurgeCache,
}

func init() {
	rootCmd.AddCommand(purgeCacheCmd)
}

func runPurgeCache(cmd *cobra.Command, args []string) error {
	_, store, logger := loadRunContext()
	if err := store.Purge(); err != nil {
		return err
	}
	logger.Infof("purged cache at %s", store.BaseDir)
	return nil
}
