package main

import (
	"fmt"
	"os"

	"github.com/shivam-909/freelistalloc/alloc"
)

const N = 100000000

func main() {
	slice := alloc.MakeSlice[int](N)
	if slice == nil {
		fmt.Fprintln(os.Stderr, "allocation failed")
		os.Exit(1)
	}
	for i := range N {
		slice[i] = i
	}

	alloc.FreeSlice(slice)
}
