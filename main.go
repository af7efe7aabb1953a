package main

import "ESMP/cmd"

func main() {
	cmd.Execute()
}
