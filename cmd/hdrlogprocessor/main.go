// Command hdrlogprocessor merges tagged intervals out of a histogram log
// and reports their percentile distribution, per spec.md §6.
package main

import (
	"os"

	"github.com/HdrHistogram/HdrHistogram-sub001/internal/cli"
)

func main() {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args[1:], env))
}
