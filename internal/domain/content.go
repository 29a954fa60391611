package domain

import (
	"fmt"
	"strings"
	"time"
)

const DefaultGatewayHost = "ipfs.storacha.link"

type Content struct {
	ID         string
	Name       string
	CID        string
	GatewayURL string
	Size       uint64
	UploadedAt time.Time
}

// File is a named blob handed to an upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// GatewayURL returns https://<address>.<host> for a content address.
func GatewayURL(address, host string) string {
	return GatewayURLWithScheme("https", address, host)
}

func GatewayURLWithScheme(scheme, address, host string) string {
	if host == "" {
		host = DefaultGatewayHost
	}
	if scheme == "" {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s.%s", scheme, address, strings.TrimPrefix(host, "."))
}
