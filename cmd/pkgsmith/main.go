package main

import (
	"os"

	"github.com/goplus/pkgsmith/cmd/pkgsmith/internal"
)

func main() {
	os.Exit(internal.Execute())
}
