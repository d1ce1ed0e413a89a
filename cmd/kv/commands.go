package kv

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/sqlstore"
	"github.com/spf13/cobra"
	"strconv"
	"strings"
)

// value types accepted by --type
const (
	typeString = "string"
	typeBool   = "bool"
	typeInt    = "int"
	typeLong   = "long"
	typeFloat  = "float"
	typeDouble = "double"
	typeBytes  = "bytes"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long: `Sets the value for a key. The value is parsed according to --type,
bytes are given as standard base64.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			typ, _ := cmd.Flags().GetString("type")
			if err := setTyped(kvStore, key, raw, typ); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			typ, _ := cmd.Flags().GetString("type")
			resp, ok, err := getTyped(kvStore, key, typ)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := kvStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.DeleteAll(); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := kvStore.IStore.(store.IInfoProvider)
			if !ok {
				return store.NewError(store.RetCUnsupportedOperation, "the backend provides no information")
			}
			info, err := p.Info()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	pragmaCmd = &cobra.Command{
		Use:   "pragma [pragma]",
		Short: "Runs a pragma on a sqlite store",
		Long: `Runs a pragma on a sqlite store and prints the result rows,
e.g. "kvs pragma journal_mode" or "kvs pragma user_version=3".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sqliteStore()
			if err != nil {
				return err
			}
			rows, err := s.Pragma(args[0])
			if err != nil {
				return err
			}
			for _, row := range rows {
				fmt.Println(row)
			}
			return nil
		},
	}
	vacuumCmd = &cobra.Command{
		Use:   "vacuum",
		Short: "Rebuilds the database file of a sqlite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sqliteStore()
			if err != nil {
				return err
			}
			if err := s.Vacuum(); err != nil {
				return err
			}
			fmt.Println("vacuum successfully")
			return nil
		},
	}
)

func init() {
	usage := util.WrapString("Type of the value (string, bool, int, long, float, double, bytes)")
	setCmd.Flags().String("type", typeString, usage)
	getCmd.Flags().String("type", typeString, usage)
}

func sqliteStore() (*sqlstore.Store, error) {
	s, ok := kvStore.IStore.(*sqlstore.Store)
	if !ok {
		return nil, store.NewError(store.RetCUnsupportedOperation, "only available for the sqlite backend")
	}
	return s, nil
}

// setTyped parses raw as typ and stores it.
func setTyped(s store.IStore, key, raw, typ string) error {
	invalid := func(err error) error {
		return store.WrapError(store.RetCInvalidOperation, fmt.Sprintf("%q is not a valid %s", raw, typ), err)
	}

	switch strings.ToLower(typ) {
	case typeString:
		return s.SetString(key, raw)
	case typeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return invalid(err)
		}
		return s.SetBool(key, v)
	case typeInt:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return invalid(err)
		}
		return s.SetInt(key, int32(v))
	case typeLong:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return invalid(err)
		}
		return s.SetLong(key, v)
	case typeFloat:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return invalid(err)
		}
		return s.SetFloat(key, float32(v))
	case typeDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid(err)
		}
		return s.SetDouble(key, v)
	case typeBytes:
		v, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return invalid(err)
		}
		return s.SetBytes(key, v)
	default:
		return store.NewError(store.RetCConfigError, fmt.Sprintf("unknown type %q", typ))
	}
}

// getTyped reads key as typ and formats the value for printing.
func getTyped(s store.IStore, key, typ string) (string, bool, error) {
	switch strings.ToLower(typ) {
	case typeString:
		v, ok, err := s.TryGetString(key)
		return v, ok, err
	case typeBool:
		v, ok, err := s.TryGetBool(key)
		return strconv.FormatBool(v), ok, err
	case typeInt:
		v, ok, err := s.TryGetInt(key)
		return strconv.FormatInt(int64(v), 10), ok, err
	case typeLong:
		v, ok, err := s.TryGetLong(key)
		return strconv.FormatInt(v, 10), ok, err
	case typeFloat:
		v, ok, err := s.TryGetFloat(key)
		return strconv.FormatFloat(float64(v), 'g', -1, 32), ok, err
	case typeDouble:
		v, ok, err := s.TryGetDouble(key)
		return strconv.FormatFloat(v, 'g', -1, 64), ok, err
	case typeBytes:
		v, ok, err := s.TryGetBytes(key)
		return base64.StdEncoding.EncodeToString(v), ok, err
	default:
		return "", false, store.NewError(store.RetCConfigError, fmt.Sprintf("unknown type %q", typ))
	}
}
