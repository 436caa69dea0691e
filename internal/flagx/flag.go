// Package flagx helps several components share os.Args without tripping over
// each other's flags: each one filters out the flags it owns and parses only
// those with its own flag.FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args made of the allowed flags and their
// values. Both "-f value" and "-f=value" forms are recognised. A value is
// only consumed when the next argument does not itself start with "-".
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFileFlag returns the JSON config path given with -c or -config,
// or an empty string when neither is present.
func ConfigFileFlag() string {
	return stringFlag([]string{"c", "config"}, "path to JSON config file")
}

// EnvFileFlag returns the dotenv path given with -env, or an empty string.
func EnvFileFlag() string {
	return stringFlag([]string{"env"}, "path to .env file")
}

func stringFlag(names []string, usage string) string {
	var value string

	dashed := make([]string, 0, len(names))
	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	for _, n := range names {
		dashed = append(dashed, "-"+n)
		fs.StringVar(&value, n, "", usage)
	}
	_ = fs.Parse(FilterArgs(os.Args[1:], dashed))

	return value
}
