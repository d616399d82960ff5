package main

import "github.com/maxvaer/proxyftp/cmd"

func main() {
	cmd.Execute()
}
