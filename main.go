// Package main is the entry point for the osumetrics CLI tool, which ranks
// osu! multiplayer match players by match cost and recomputes recent plays.
package main

import "github.com/pable/go-osu-metrics/cmd"

func main() {
	cmd.Execute()
}
