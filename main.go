package main

import "maplayer/cmd"

func main() {
	cmd.Execute()
}
