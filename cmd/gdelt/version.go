package main

import (
	"fmt"
	"runtime"
)

// Version is stamped by the release build; "dev" marks a source build.
var Version = "dev"

func printVersion() {
	fmt.Printf("gdelt %s\n", Version)
	fmt.Printf("%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
