//go:build !linux

package main

// newTerminalEditor has no raw-mode implementation on this platform.
func newTerminalEditor() lineReader { return nil }
