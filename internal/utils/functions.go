package utils

import (
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// SplitProxyAuth moves credentials embedded in a proxy URL into separate
// fields unless a username was already given explicitly.
func SplitProxyAuth(cfg *HTTPClientConfig) {
	parsedProxy, err := url.Parse(cfg.ProxyURL)
	if err != nil || parsedProxy.User == nil || cfg.ProxyUsername != "" {
		return
	}
	cfg.ProxyUsername = parsedProxy.User.Username()
	if password, set := parsedProxy.User.Password(); set {
		cfg.ProxyPassword = password
	}
	parsedProxy.User = nil
	cfg.ProxyURL = parsedProxy.String()
}

// OutputPathFromURL infers a file name from the last path segment of a link.
func OutputPathFromURL(link string) string {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return "download"
	}
	name := path.Base(parsedURL.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}

func ReadDownloadList(filePath string) ([]DownloadEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	return FormatBytes(uint64(float64(bytes)/elapsed)) + "/s"
}
