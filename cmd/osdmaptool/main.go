// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Command osdmaptool edits the offline cluster-membership map file
// (spec §4.7): show, create, add-osd, remove-osd, add-addrs,
// remove-addrs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-osd/crimson/osdmap"
	"github.com/crimson-osd/crimson/proto"
)

func main() {
	root := &cobra.Command{
		Use:   "osdmaptool <command> <file>",
		Short: "Edit a Crimson OsdMap file",
	}

	var rdmaAddrs, ipAddrs []string
	var id uint32

	show := &cobra.Command{
		Use:   "show <file>",
		Short: "print the map's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := osdmap.Load(args[0])
			if err != nil {
				return err
			}
			printMap(m)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <file>",
		Short: "create an empty map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := osdmap.Create(args[0])
			if err != nil {
				return err
			}
			fmt.Println("Successfully created:")
			printMap(m)
			return nil
		},
	}

	addOSD := &cobra.Command{
		Use:   "add-osd <file>",
		Short: "add an osd entry to the map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMap(args[0], func(m *proto.OsdMap) error {
				return osdmap.AddOSD(m, id, addrsFromFlags(rdmaAddrs, ipAddrs))
			})
		},
	}
	addOSD.Flags().Uint32Var(&id, "osd", 0, "osd id")
	addOSD.Flags().StringSliceVar(&rdmaAddrs, "rdma-address", nil, "RDMA address")
	addOSD.Flags().StringSliceVar(&ipAddrs, "ip-address", nil, "IP address")

	removeOSD := &cobra.Command{
		Use:   "remove-osd <file>",
		Short: "remove an osd entry from the map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMap(args[0], func(m *proto.OsdMap) error {
				return osdmap.RemoveOSD(m, id)
			})
		},
	}
	removeOSD.Flags().Uint32Var(&id, "osd", 0, "osd id")

	addAddrs := &cobra.Command{
		Use:   "add-addrs <file>",
		Short: "add addresses to an existing osd entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMap(args[0], func(m *proto.OsdMap) error {
				return osdmap.AddAddrs(m, id, addrsFromFlags(rdmaAddrs, ipAddrs))
			})
		},
	}
	addAddrs.Flags().Uint32Var(&id, "osd", 0, "osd id")
	addAddrs.Flags().StringSliceVar(&rdmaAddrs, "rdma-address", nil, "RDMA address")
	addAddrs.Flags().StringSliceVar(&ipAddrs, "ip-address", nil, "IP address")

	removeAddrs := &cobra.Command{
		Use:   "remove-addrs <file>",
		Short: "remove addresses from an existing osd entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMap(args[0], func(m *proto.OsdMap) error {
				return osdmap.RemoveAddrs(m, id, addrsFromFlags(rdmaAddrs, ipAddrs))
			})
		},
	}
	removeAddrs.Flags().Uint32Var(&id, "osd", 0, "osd id")
	removeAddrs.Flags().StringSliceVar(&rdmaAddrs, "rdma-address", nil, "RDMA address")
	removeAddrs.Flags().StringSliceVar(&ipAddrs, "ip-address", nil, "IP address")

	root.AddCommand(show, create, addOSD, removeOSD, addAddrs, removeAddrs)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withMap loads the map at path, applies fn, and rewrites the file
// (spec §4.7: "every mutation bumps epoch by one and rewrites the file
// from offset zero").
func withMap(path string, fn func(*proto.OsdMap) error) error {
	m, err := osdmap.Load(path)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	if err := osdmap.Save(path, m); err != nil {
		return err
	}
	printMap(m)
	return nil
}

func addrsFromFlags(rdmaAddrs, ipAddrs []string) []proto.Address {
	addrs := make([]proto.Address, 0, len(rdmaAddrs)+len(ipAddrs))
	for _, name := range rdmaAddrs {
		addrs = append(addrs, proto.Address{Type: proto.AddressTypeRDMA, Name: name})
	}
	for _, name := range ipAddrs {
		addrs = append(addrs, proto.Address{Type: proto.AddressTypeIP, Name: name})
	}
	return addrs
}

func printMap(m *proto.OsdMap) {
	fmt.Printf("epoch %d, %d entries\n", m.Epoch, len(m.Entries))
	for _, e := range m.Entries {
		fmt.Printf("  osd.%d\n", e.ID)
		for _, a := range e.Addresses {
			kind := "ip"
			if a.Type == proto.AddressTypeRDMA {
				kind = "rdma"
			}
			fmt.Printf("    %s %s\n", kind, a.Name)
		}
	}
}
