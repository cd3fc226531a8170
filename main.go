package main

import (
	"github.com/adopt-ai/zapi-go/cmd"
)

func main() {
	cmd.Execute()
}
