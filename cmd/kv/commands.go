package kv

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setIfUnsetCmd = &cobra.Command{
		Use:   "setnx [key] [value]",
		Short: "Sets the value for a key if the key does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.SetIfUnset(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("setnx successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", args[0], ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key and its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Delete(args[0]); err != nil {
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
			found, err := rpcStore.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	hGetCmd = &cobra.Command{
		Use:   "hget [key] [field]",
		Short: "Reads a field of the hash stored at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok, err := rpcStore.HGet(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, field=%s, found=%v, resp=%s\n", args[0], args[1], ok, resp)
			return nil
		},
	}
	hSetIfUnsetCmd = &cobra.Command{
		Use:   "hsetnx [key] [field] [value]",
		Short: "Sets a field of the hash stored at key if the field does not exist",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.HSetIfUnset(args[0], args[1], []byte(args[2])); err != nil {
				return err
			}
			fmt.Println("hsetnx successfully")
			return nil
		},
	}
	hDelCmd = &cobra.Command{
		Use:   "hdel [key] [field]",
		Short: "Deletes a field of the hash stored at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.HDelete(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("hdel successfully")
			return nil
		},
	}
	renameCmd = &cobra.Command{
		Use:   "rename [key] [newKey]",
		Short: "Renames a key if the new key does not exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.RenameIfUnset(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("rename successfully")
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "Lists all keys matching the glob pattern ('*' is the only wildcard)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := rpcStore.Keys(args[0])
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
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
)
