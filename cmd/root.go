package cmd

import (
	"fmt"
	"github.com/ValentinKolb/kvs/cmd/kv"
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvs",
		Short: "typed key-value store",
		Long: fmt.Sprintf(`kvs (v%s)

A typed key-value store with interchangeable backends: SQLite and bbolt
files with coalesced commits, or a single (optionally compressed and
encrypted) state file.

Every flag can also be set as an environment variable with the prefix
KVS_ (e.g. KVS_BACKEND=bolt), .env and .env.local are loaded.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvs v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.Commands()...)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	// the store is closed even if the command failed, so pending commits are not lost
	if cerr := kv.CloseStore(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error closing store: %v\n", cerr)
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}
