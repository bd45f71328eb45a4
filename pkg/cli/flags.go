package cli

import (
	"github.com/spf13/pflag"
)

// bind lets a flag override key only when it is set on the command line.
func (a *app) bind(f *pflag.Flag, key string) {
	if f == nil {
		panic("cli: binding unknown flag for " + key)
	}
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}
