//go:build !linux

package main

import "github.com/spf13/cobra"

// The reactor needs epoll.
func newEchoCommand(d *demo) *cobra.Command { return nil }
