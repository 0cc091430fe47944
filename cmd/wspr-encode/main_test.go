package main

import (
	"os"
	"testing"

	wsprbeacon "github.com/doismellburning/wsprbeacon/src"
	"github.com/spf13/pflag"
)

func Test_Main(t *testing.T) {
	os.Args = []string{"wspr-encode", "K1ABC", "FN42", "37"}
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)

	wsprbeacon.AssertOutputContains(t, main, "Symbols: 3300200010201312221003231332")
}
