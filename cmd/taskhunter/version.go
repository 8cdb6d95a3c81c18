package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/version"
)

var versionFull bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		if versionFull {
			fmt.Println(version.Full())
			return
		}
		fmt.Printf("taskhunter version %s\n", version.Get())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "Include Go version and platform")
}
