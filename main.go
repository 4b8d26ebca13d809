package main

import "github.com/interlay/interbtc-indexer/cmd"

func main() {
	cmd.Execute()
}
