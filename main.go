package main

import (
	"context"
	_ "time/tzdata"

	"github.com/navarrastar/contactsheet/pkg/cli"
)

func main() {
	cli.Execute(context.Background())
}
