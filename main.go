package main

import "github.com/openlabdaq/daqcapture/cmd"

func main() {
	cmd.Execute()
}
