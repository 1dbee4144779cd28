package main

import "proxylink/internal/client/cmd"

func main() {
	cmd.Execute()
}
