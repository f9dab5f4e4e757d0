package appserver

import "fmt"

func addrOf(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
