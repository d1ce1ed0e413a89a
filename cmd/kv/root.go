package kv

import (
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cli")

var (
	// kvStore is opened by the PersistentPreRunE hook of every store command
	kvStore *util.Handle

	storeCmdConfig *common.StoreConfig
)

// Commands returns the commands operating on a store. They share the flags added by
// util.SetupStoreFlags on the root command.
func Commands() []*cobra.Command {
	cmds := []*cobra.Command{getCmd, setCmd, hasCmd, delCmd, clearCmd, infoCmd, pragmaCmd, vacuumCmd, benchCmd}
	for _, cmd := range cmds {
		cmd.PersistentPreRunE = setupStore
	}
	return cmds
}

// setupStore initializes logging and opens the configured store
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	storeCmdConfig = util.GetStoreConfig()
	if err := common.InitLoggers(storeCmdConfig.LogLevel); err != nil {
		return err
	}
	Logger.Debugf("configuration:%s", storeCmdConfig.String())

	h, err := util.OpenStore(storeCmdConfig)
	if err != nil {
		return err
	}
	kvStore = h
	return nil
}

// CloseStore flushes and closes the store opened by a command, if any.
func CloseStore() error {
	if kvStore == nil {
		return nil
	}
	err := kvStore.Close()
	kvStore = nil
	return err
}
