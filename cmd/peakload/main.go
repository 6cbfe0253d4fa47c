package main

import "peakload/cmd"

func main() {
	cmd.Execute()
}
