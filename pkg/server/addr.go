package server

import (
	"fmt"
	"strings"
)

// listenAddr accepts a bare port ("8080"), ":8080" or "host:8080".
func listenAddr(addr string) string {
	if addr == "" {
		return ":0"
	}
	if strings.Contains(addr, ":") {
		return addr
	}
	return fmt.Sprintf(":%s", addr)
}
