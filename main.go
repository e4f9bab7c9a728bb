package main

import "github.com/notargets/gogamg/cmd"

func main() {
	cmd.Execute()
}
