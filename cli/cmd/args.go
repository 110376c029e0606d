package cmd

import (
	"net"
	"strconv"
	"strings"
)

// NormalizeArgs rewrites "-r host port" into "-r host:port" so the flag
// parser does not stop at the bare port. Arguments after "--" are left
// alone.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return append(out, args[i:]...)
		}
		if (a == "-r" || a == "--r") && i+2 < len(args) && !strings.Contains(args[i+1], ":") && isPort(args[i+2]) {
			out = append(out, a, net.JoinHostPort(args[i+1], args[i+2]))
			i += 2
			continue
		}
		out = append(out, a)
	}
	return out
}

func isPort(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && n <= 65535
}

// listenAddr turns a bare port into ":port".
func listenAddr(s string) string {
	if isPort(s) {
		return ":" + s
	}
	return s
}
