package tools

import (
	"fmt"
	"strings"
)

const (
	networkSplit = "@"
)

// ParseNetwork splits "tcp@127.0.0.1:61613" into its network and address.
func ParseNetwork(str string) (network, addr string, err error) {
	idx := strings.Index(str, networkSplit)
	if idx <= 0 || idx == len(str)-1 {
		err = fmt.Errorf("addr: \"%s\" error, must be network@address:port or network@unixsocket, network is like 'tcp' and so on", str)
		return
	}
	network = str[:idx]
	addr = str[idx+1:]
	return
}

// IsNetworkAddr reports whether str uses network@address notation rather than a URL.
func IsNetworkAddr(str string) bool {
	if strings.Contains(str, "://") {
		return false
	}
	_, _, err := ParseNetwork(str)
	return err == nil
}
